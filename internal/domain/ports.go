package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrCircuitOpen is returned by a live source that is refusing calls.
	ErrCircuitOpen = errors.New("live source circuit open")
)

// CardSource fetches raw result cards for a location from a live source.
type CardSource interface {
	FetchCards(ctx context.Context, location string) ([]HotelCard, error)
}

// Synthesizer turns hotels into editorial and social content.
type Synthesizer interface {
	Synthesize(ctx context.Context, location string, hotels []HotelRecord) (Content, error)
}

// Channel is one distribution target.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, p Post) (Receipt, error)
}

type PostRepository interface {
	// Write path
	SavePost(ctx context.Context, p Post) error

	// Read path (most recent first)
	ListRecentPosts(ctx context.Context, limit int) ([]Post, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
