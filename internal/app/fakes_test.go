package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"hotel_agent/internal/domain"
)

// ---- fakes ----

// seqRand returns scripted IntN values (cycled) and a fixed Float64.
type seqRand struct {
	mu   sync.Mutex
	ints []int
	i    int
	f    float64
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[r.i%len(r.ints)]
	r.i++
	return v % n
}

func (r *seqRand) Float64() float64 { return r.f }

type fakeSource struct {
	cards []domain.HotelCard
	err   error
	delay time.Duration
	panic bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeSource) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	f.mu.Lock()
	f.calls = append(f.calls, location)
	f.mu.Unlock()
	if f.panic {
		panic("card parser exploded")
	}
	if f.delay > 0 {
		// ignores ctx on purpose: the acquirer must bound it anyway
		time.Sleep(f.delay)
	}
	return f.cards, f.err
}

func card(name, price, rating string) domain.HotelCard {
	return domain.HotelCard{
		Name:   []string{"", name},
		Price:  []string{price},
		Rating: []string{rating},
		Image:  []string{"https://img.example.com/" + strings.ReplaceAll(name, " ", "-") + ".jpg"},
	}
}

type fakeSynth struct {
	err    error
	panic  bool
	mu     sync.Mutex
	gotLoc string
	got    []domain.HotelRecord
	block  chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, location string, hotels []domain.HotelRecord) (domain.Content, error) {
	if f.block != nil {
		<-f.block
	}
	if f.panic {
		panic("template blew up")
	}
	f.mu.Lock()
	f.gotLoc, f.got = location, hotels
	f.mu.Unlock()
	if f.err != nil {
		return domain.Content{}, f.err
	}
	return domain.Content{
		Title:          "Top hotels in " + location,
		Body:           "body",
		Excerpt:        "excerpt",
		ImageRef:       hotels[0].ImageRef,
		SocialCaptions: map[string]string{"twitter": "tw", "facebook": "fb", "instagram": "ig"},
	}, nil
}

type fakeRepo struct {
	mu    sync.Mutex
	err   error
	posts []domain.Post
}

func (f *fakeRepo) SavePost(ctx context.Context, p domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, p)
	return nil
}

func (f *fakeRepo) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Post, 0, limit)
	for i := len(f.posts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.posts[i])
	}
	return out, nil
}

func (f *fakeRepo) saved() []domain.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Post(nil), f.posts...)
}

type fakeChannel struct {
	name  string
	err   error
	panic bool
	delay time.Duration

	mu  sync.Mutex
	got []domain.Post
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(ctx context.Context, p domain.Post) (domain.Receipt, error) {
	if c.panic {
		panic("channel " + c.name + " crashed")
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		}
	}
	c.mu.Lock()
	c.got = append(c.got, p)
	c.mu.Unlock()
	if c.err != nil {
		return domain.Receipt{}, c.err
	}
	return domain.Receipt{Simulated: true, Platform: c.name, Ref: c.name + "-1"}, nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *[]domain.Post:
		*d = v.([]domain.Post)
	default:
		return false, errors.New("unsupported type")
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}
