package bootstrap_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"hotel_agent/internal/adapters/channels"
	"hotel_agent/internal/adapters/feed"
	"hotel_agent/internal/adapters/source"
	"hotel_agent/internal/app"
	"hotel_agent/internal/bootstrap"
	"hotel_agent/internal/domain"
	"hotel_agent/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	posts []domain.Post
}

func (m *memRepo) SavePost(ctx context.Context, p domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append([]domain.Post{p}, m.posts...)
	return nil
}

func (m *memRepo) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Post(nil), m.posts[:min(limit, len(m.posts))]...), nil
}

// gatedSource blocks every fetch until release is closed.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return []domain.HotelCard{{Name: []string{"Gate Hotel"}, Price: []string{"149.50"}, Rating: []string{"4.4"}}}, nil
}

// closeTrackingRepo fails writes once closed, like a closed sql.DB.
type closeTrackingRepo struct {
	memRepo
	closed bool
}

func (r *closeTrackingRepo) SavePost(ctx context.Context, p domain.Post) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.New("sql: database is closed")
	}
	return r.memRepo.SavePost(ctx, p)
}

func (r *closeTrackingRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func testConfig() shared.Config {
	return shared.Config{
		Locations:          []string{"Bali", "Paris"},
		Buckets:            map[string][]string{"morning": {"Bali"}},
		SourceTimeout:      time.Second,
		SourceMaxResults:   8,
		SocialPlatforms:    []string{"twitter", "instagram"},
		ChannelTimeout:     time.Second,
		ChannelParallelism: 2,
		CacheTTL:           time.Minute,
	}
}

func TestAssemble_OfflineCyclePublishesEverywhere(t *testing.T) {
	repo := &memRepo{}
	agent := bootstrap.Assemble(testConfig(), source.Offline{}, repo, nil)
	defer agent.Close()

	if got := agent.Distributor.Channels(); len(got) != 3 || got[0] != "mobile-app" || got[1] != "twitter" || got[2] != "instagram" {
		t.Fatalf("channels = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := agent.Bus.Subscribe(ctx, feed.TopicMobilePosts)
	if err != nil {
		t.Fatal(err)
	}

	run, err := agent.Orchestrator.RunCycle(ctx, app.Request{Trigger: app.TriggerManual, Location: "Paris"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !run.UsedFallback || run.Location != "Paris" {
		t.Fatalf("run = %+v", run)
	}
	for name, res := range run.Channels {
		if !res.Success {
			t.Fatalf("%s failed: %s", name, res.Error)
		}
	}
	if !run.Channels["twitter"].Simulated || run.Channels["mobile-app"].Simulated {
		t.Fatalf("simulated flags wrong: %+v", run.Channels)
	}

	select {
	case m := <-msgs:
		m.Ack()
		var p channels.MobilePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			t.Fatal(err)
		}
		if p.PostID != run.PostID || p.Location != "Paris" || len(p.Hotels) != 3 {
			t.Fatalf("payload = %+v", p)
		}
	case <-ctx.Done():
		t.Fatal("mobile payload not published")
	}

	posts, err := agent.Queries.RecentPosts(ctx, 10)
	if err != nil || len(posts) != 1 || posts[0].ID != run.PostID {
		t.Fatalf("recent posts: %v %+v", err, posts)
	}
	if posts[0].Hotels[0].Name != "Paris Luxury Resort" {
		t.Fatalf("fallback hotel order lost: %+v", posts[0].Hotels)
	}
}

func TestShutdown_WaitsForInFlightCycle(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	repo := &closeTrackingRepo{}
	cfg := testConfig()
	cfg.SourceTimeout = 5 * time.Second
	agent := bootstrap.Assemble(cfg, src, repo, nil)
	agent.AddCloser(repo.Close)

	type result struct {
		run *domain.CycleRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := agent.Orchestrator.RunCycle(context.Background(), app.Request{Trigger: app.TriggerManual, Location: "Lisbon"})
		done <- result{run, err}
	}()
	<-src.entered

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- agent.Shutdown(ctx)
	}()

	select {
	case <-stopped:
		t.Fatal("shutdown returned while a cycle held the token")
	case <-time.After(100 * time.Millisecond):
	}
	close(src.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("cycle failed: %v", res.err)
	}
	if err := <-stopped; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if res.run.UsedFallback || len(repo.posts) != 1 || repo.posts[0].Hotels[0].NightlyPrice != 149.5 {
		t.Fatalf("run = %+v posts = %+v", res.run, repo.posts)
	}
	for name, ch := range res.run.Channels {
		if !ch.Success {
			t.Fatalf("%s failed after shutdown began: %s", name, ch.Error)
		}
	}
}

func TestShutdown_BoundedByContext(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(src.release)
	cfg := testConfig()
	cfg.SourceTimeout = 5 * time.Second
	agent := bootstrap.Assemble(cfg, src, &memRepo{}, nil)

	go func() {
		_, _ = agent.Orchestrator.RunCycle(context.Background(), app.Request{Trigger: app.TriggerManual, Location: "Oslo"})
	}()
	<-src.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_ = agent.Shutdown(ctx)
	if time.Since(start) > 2*time.Second {
		t.Fatal("shutdown ignored its deadline")
	}
}

func TestStopBudget_CoversCycleBounds(t *testing.T) {
	cfg := shared.Config{SourceTimeout: 30 * time.Second, ChannelTimeout: 10 * time.Second}
	if got := bootstrap.StopBudget(cfg); got <= 40*time.Second {
		t.Fatalf("budget %v does not cover fetch + delivery", got)
	}
}
