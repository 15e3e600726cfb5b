package app

import (
	"math/rand/v2"
	"time"
)

// Rand is the randomness the selector and fallback draw from.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Time-of-day bucket names.
const (
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
	BucketNight     = "night"
)

// BucketFor maps an hour (0-23) to its bucket.
func BucketFor(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 18:
		return BucketAfternoon
	case hour >= 18:
		return BucketEvening
	default:
		return BucketNight
	}
}

type LocationSelector struct {
	pool    []string
	buckets map[string][]string
	tz      *time.Location
	rng     Rand
}

// NewLocationSelector copies pool and buckets. A nil tz means time.Local and a
// nil rng means the global math/rand/v2 source.
func NewLocationSelector(pool []string, buckets map[string][]string, tz *time.Location, rng Rand) *LocationSelector {
	if tz == nil {
		tz = time.Local
	}
	if rng == nil {
		rng = globalRand{}
	}
	b := make(map[string][]string, len(buckets))
	for k, v := range buckets {
		b[k] = append([]string(nil), v...)
	}
	return &LocationSelector{
		pool:    append([]string(nil), pool...),
		buckets: b,
		tz:      tz,
		rng:     rng,
	}
}

// ByTimeOfDay picks uniformly from the bucket matching now's hour. An empty or
// missing bucket falls back to the whole pool.
func (s *LocationSelector) ByTimeOfDay(now time.Time) string {
	cands := s.buckets[BucketFor(now.In(s.tz).Hour())]
	if len(cands) == 0 {
		cands = s.pool
	}
	return s.pick(cands)
}

// UniformRandom picks uniformly from the whole pool.
func (s *LocationSelector) UniformRandom() string { return s.pick(s.pool) }

// Pool returns a copy of the configured locations.
func (s *LocationSelector) Pool() []string { return append([]string(nil), s.pool...) }

func (s *LocationSelector) pick(from []string) string {
	if len(from) == 0 {
		return ""
	}
	return from[s.rng.IntN(len(from))]
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }
