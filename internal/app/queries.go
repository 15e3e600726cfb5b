package app

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"hotel_agent/internal/domain"
)

// MaxRecentPosts is the widest window readers can ask for.
const MaxRecentPosts = 50

// RecentPostsCacheKey holds the newest MaxRecentPosts posts; narrower reads
// are served from the same entry.
const RecentPostsCacheKey = "posts:recent"

type QueryService struct {
	repo     domain.PostRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.PostRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// RecentPosts returns up to limit posts, newest first.
func (s *QueryService) RecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 || limit > MaxRecentPosts {
		limit = MaxRecentPosts
	}

	var cached []domain.Post
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, RecentPostsCacheKey, &cached); ok {
			return clipPosts(cached, limit), nil
		}
	}

	ps, err := s.repo.ListRecentPosts(ctx, MaxRecentPosts)
	if err != nil {
		return nil, err
	}

	// copy to avoid aliasing the repo's backing array
	out := make([]domain.Post, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}

	// optional size guard
	if s.cache != nil {
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, RecentPostsCacheKey, out, s.cacheTTL)
		}
	}
	return clipPosts(out, limit), nil
}

func clipPosts(in []domain.Post, limit int) []domain.Post {
	n := min(len(in), limit)
	out := make([]domain.Post, n)
	for i := range n {
		out[i] = in[i].Clone()
	}
	return out
}
