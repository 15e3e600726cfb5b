package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/domain"
)

// Breaker guards a CardSource with a circuit breaker. While open it answers
// immediately with domain.ErrCircuitOpen instead of launching a browser.
type Breaker struct {
	src  domain.CardSource
	cb   *gobreaker.CircuitBreaker[[]domain.HotelCard]
	name string
}

type BreakerOptions struct {
	Name                string
	ConsecutiveFailures uint32        // failures in a row before opening
	OpenFor             time.Duration // wait before a half-open probe
}

func NewBreaker(src domain.CardSource, opts BreakerOptions) *Breaker {
	if opts.Name == "" {
		opts.Name = "live-source"
	}
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 3
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 10 * time.Minute
	}

	observability.SetBreakerState(opts.Name, stateToFloat(gobreaker.StateClosed))
	cb := gobreaker.NewCircuitBreaker[[]domain.HotelCard](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    0, // counts only reset on state change
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			observability.SetBreakerState(name, stateToFloat(to))
		},
	})
	return &Breaker{src: src, cb: cb, name: opts.Name}
}

func (b *Breaker) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	cards, err := b.cb.Execute(func() ([]domain.HotelCard, error) {
		return b.src.FetchCards(ctx, location)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
	}
	return cards, err
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string { return b.cb.State().String() }

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
