package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotel_agent/internal/app"
	"hotel_agent/internal/domain"
)

func samplePost() domain.Post {
	return domain.NewPost("Bali", []domain.HotelRecord{{Name: "A", NightlyPrice: 10}}, domain.Content{
		Title:          "t",
		SocialCaptions: map[string]string{"twitter": "tw"},
	}, time.Now())
}

func TestDistribute_MiddleChannelFails(t *testing.T) {
	chs := []*fakeChannel{
		{name: "mobile-app"},
		{name: "twitter", err: errors.New("rate limited")},
		{name: "facebook"},
	}
	d := app.NewDistributor([]domain.Channel{chs[0], chs[1], chs[2]}, time.Second, 4)

	res := d.Distribute(context.Background(), samplePost())
	if len(res) != 3 {
		t.Fatalf("want 3 results, got %d", len(res))
	}
	for i, want := range []string{"mobile-app", "twitter", "facebook"} {
		if res[i].Channel != want {
			t.Fatalf("result %d is %s, want %s", i, res[i].Channel, want)
		}
	}
	if !res[0].Success || !res[2].Success {
		t.Fatalf("channels 1 and 3 should succeed: %+v", res)
	}
	if res[1].Success || res[1].Error != "rate limited" {
		t.Fatalf("channel 2 should carry its error: %+v", res[1])
	}
	for _, c := range chs {
		if c.count() != 1 {
			t.Fatalf("%s delivered %d times, want exactly once", c.name, c.count())
		}
	}
}

func TestDistribute_PanicAndTimeoutStayLocal(t *testing.T) {
	slow := &fakeChannel{name: "slow", delay: time.Second}
	boom := &fakeChannel{name: "boom", panic: true}
	ok := &fakeChannel{name: "ok"}
	d := app.NewDistributor([]domain.Channel{slow, boom, ok}, 50*time.Millisecond, 1)

	start := time.Now()
	res := d.Distribute(context.Background(), samplePost())
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("per-channel timeout not applied: %s", time.Since(start))
	}
	if res[0].Success || res[0].Error == "" {
		t.Fatalf("slow channel should time out: %+v", res[0])
	}
	if res[1].Success || res[1].Error == "" {
		t.Fatalf("panicking channel should fail: %+v", res[1])
	}
	if !res[2].Success || res[2].Ref != "ok-1" || !res[2].Simulated {
		t.Fatalf("healthy channel should succeed: %+v", res[2])
	}
}

func TestDistribute_ChannelsGetIsolatedCopies(t *testing.T) {
	mut := &mutatingChannel{}
	after := &fakeChannel{name: "after"}
	d := app.NewDistributor([]domain.Channel{mut, after}, time.Second, 1)
	p := samplePost()
	d.Distribute(context.Background(), p)
	if p.Hotels[0].Name != "A" || p.SocialCaptions["twitter"] != "tw" {
		t.Fatalf("channel mutated the caller's post: %+v", p)
	}
	if after.got[0].Hotels[0].Name != "A" {
		t.Fatalf("mutation leaked into another channel")
	}
}

type mutatingChannel struct{}

func (mutatingChannel) Name() string { return "mutator" }
func (mutatingChannel) Deliver(ctx context.Context, p domain.Post) (domain.Receipt, error) {
	p.Hotels[0].Name = "changed"
	p.SocialCaptions["twitter"] = "changed"
	return domain.Receipt{}, nil
}
