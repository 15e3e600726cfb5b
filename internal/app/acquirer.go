package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/domain"
)

// MaxLiveResults caps how many live records one acquisition returns.
const MaxLiveResults = 8

// Fallback reasons.
const (
	ReasonError       = "error"
	ReasonTimeout     = "timeout"
	ReasonEmpty       = "empty"
	ReasonBreakerOpen = "breaker_open"
)

// Acquisition is the result of one acquire call. Hotels is never empty.
type Acquisition struct {
	Hotels       []domain.HotelRecord
	UsedFallback bool
	Reason       string
}

type AcquirerOptions struct {
	Timeout    time.Duration
	MaxResults int
	Rand       Rand
	Now        func() time.Time
}

type Acquirer struct {
	src  domain.CardSource
	opts AcquirerOptions
	log  zerolog.Logger
}

// NewAcquirer wraps src; a nil src means every call uses the synthetic dataset.
func NewAcquirer(src domain.CardSource, opts AcquirerOptions) *Acquirer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxResults <= 0 || opts.MaxResults > MaxLiveResults {
		opts.MaxResults = MaxLiveResults
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Acquirer{
		src:  src,
		opts: opts,
		log:  log.With().Str("component", "acquirer").Logger(),
	}
}

type fetchResult struct {
	cards []domain.HotelCard
	err   error
}

// Acquire never fails: any live-source problem is logged and answered with
// synthetic records for location.
func (a *Acquirer) Acquire(ctx context.Context, location string) Acquisition {
	if a.src == nil {
		return a.fallback(location, ReasonError, errors.New("no live source configured"))
	}

	fctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	// Buffered so a source that ignores its context can finish later without
	// leaking the goroutine.
	done := make(chan fetchResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("live source panic: %v", r)}
			}
		}()
		cards, err := a.src.FetchCards(fctx, location)
		done <- fetchResult{cards: cards, err: err}
	}()

	timer := time.NewTimer(a.opts.Timeout)
	defer timer.Stop()

	var res fetchResult
	select {
	case res = <-done:
	case <-timer.C:
		return a.fallback(location, ReasonTimeout, fmt.Errorf("live fetch exceeded %s", a.opts.Timeout))
	case <-ctx.Done():
		return a.fallback(location, ReasonTimeout, ctx.Err())
	}
	observability.ObserveExternal("live-source", "search", statusOf(res.err), time.Since(start))

	if res.err != nil {
		switch {
		case errors.Is(res.err, domain.ErrCircuitOpen):
			return a.fallback(location, ReasonBreakerOpen, res.err)
		case errors.Is(res.err, context.DeadlineExceeded):
			return a.fallback(location, ReasonTimeout, res.err)
		default:
			return a.fallback(location, ReasonError, res.err)
		}
	}

	hotels := mapCards(location, res.cards, a.opts.MaxResults, a.opts.Rand, a.opts.Now())
	if len(hotels) == 0 {
		return a.fallback(location, ReasonEmpty, fmt.Errorf("%d cards, none usable", len(res.cards)))
	}
	a.log.Info().
		Str("location", location).
		Int("cards", len(res.cards)).
		Int("hotels", len(hotels)).
		Msg("live acquisition ok")
	return Acquisition{Hotels: hotels}
}

func (a *Acquirer) fallback(location, reason string, err error) Acquisition {
	a.log.Warn().Err(err).
		Str("location", location).
		Str("reason", reason).
		Msg("live source unavailable, using synthetic hotels")
	observability.ObserveFallback(reason)
	return Acquisition{
		Hotels:       SyntheticHotels(location, a.opts.Rand, a.opts.Now()),
		UsedFallback: true,
		Reason:       reason,
	}
}

func statusOf(err error) int {
	if err != nil {
		return 599
	}
	return 200
}
