//go:build integration || !unit

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"hotel_agent/internal/domain"
	"hotel_agent/internal/storage/postgres"
)

func startPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=hotel",
			"POSTGRES_PASSWORD=hotel",
			"POSTGRES_DB=hotel_agent",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run postgres: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("host=127.0.0.1 port=%s user=hotel password=hotel dbname=hotel_agent sslmode=disable",
		resource.GetPort("5432/tcp"))

	var store *postgres.Store
	pool.MaxWait = 2 * time.Minute
	if err := pool.Retry(func() error {
		var e error
		store, e = postgres.Open(context.Background(), dsn)
		return e
	}); err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Postgres_SaveAndListRecent(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	older := domain.Post{
		ID: "11111111-1111-1111-1111-111111111111", Title: "Paris", Body: "b", Location: "Paris",
		Status: domain.StatusPublished, PublishedAt: base,
		SocialCaptions: map[string]string{"facebook": "fb"},
		Hotels: []domain.HotelRecord{
			{Name: "Zed", NightlyPrice: 120.25, Rating: 4.1, Location: "Paris", ObservedAt: base},
			{Name: "Alpha", NightlyPrice: 80, Rating: 3.9, Location: "Paris", Amenities: []string{"Spa"}, ObservedAt: base},
		},
	}
	newer := domain.Post{
		ID: "22222222-2222-2222-2222-222222222222", Title: "Bali", Body: "b", Location: "Bali",
		Status: domain.StatusPublished, PublishedAt: base.Add(time.Hour),
		Hotels: []domain.HotelRecord{{Name: "Ubud", NightlyPrice: 60, Rating: 4.8, Location: "Bali", ObservedAt: base}},
	}
	for _, p := range []domain.Post{older, newer} {
		if err := store.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost %s: %v", p.ID, err)
		}
	}

	got, err := store.ListRecentPosts(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentPosts: %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID {
		t.Fatalf("got %+v", got)
	}
	if got[1].Hotels[0].Name != "Zed" || got[1].Hotels[1].Name != "Alpha" {
		t.Fatalf("hotel order lost: %+v", got[1].Hotels)
	}
	if got[1].Hotels[0].NightlyPrice != 120.25 || got[1].Hotels[1].Amenities[0] != "Spa" {
		t.Fatalf("hotel fields: %+v", got[1].Hotels)
	}
	if got[1].SocialCaptions["facebook"] != "fb" || len(got[0].SocialCaptions) != 0 {
		t.Fatalf("captions: %+v / %+v", got[1].SocialCaptions, got[0].SocialCaptions)
	}

	// a duplicate id fails and leaves no extra hotel rows behind
	if err := store.SavePost(ctx, older); err == nil {
		t.Fatal("duplicate insert should fail")
	}
	var n int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM post_hotels WHERE post_id = $1", older.ID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("post_hotels rows = %d", n)
	}
}
