package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/domain"
)

type Distributor struct {
	channels    []domain.Channel
	timeout     time.Duration
	parallelism int64
	log         zerolog.Logger
}

// NewDistributor keeps channels in the given order; results come back in the
// same order.
func NewDistributor(channels []domain.Channel, timeout time.Duration, parallelism int) *Distributor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if parallelism <= 0 {
		parallelism = len(channels)
	}
	return &Distributor{
		channels:    append([]domain.Channel(nil), channels...),
		timeout:     timeout,
		parallelism: int64(max(parallelism, 1)),
		log:         log.With().Str("component", "distributor").Logger(),
	}
}

// Channels lists the configured channel names in send order.
func (d *Distributor) Channels() []string {
	out := make([]string, len(d.channels))
	for i, c := range d.channels {
		out[i] = c.Name()
	}
	return out
}

// Distribute sends p to every channel exactly once. A failing, slow or
// panicking channel only affects its own result.
func (d *Distributor) Distribute(ctx context.Context, p domain.Post) []domain.ChannelResult {
	results := make([]domain.ChannelResult, len(d.channels))
	sem := semaphore.NewWeighted(d.parallelism)
	var wg sync.WaitGroup

	for i, ch := range d.channels {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = domain.ChannelResult{Channel: ch.Name(), Error: err.Error()}
			observability.ObserveDelivery(ch.Name(), err)
			continue
		}
		wg.Add(1)
		go func(idx int, c domain.Channel) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = d.send(ctx, c, p.Clone())
		}(i, ch)
	}
	wg.Wait()
	return results
}

func (d *Distributor) send(ctx context.Context, c domain.Channel, p domain.Post) (res domain.ChannelResult) {
	name := c.Name()
	res.Channel = name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = domain.ChannelResult{Channel: name, Error: fmt.Sprintf("panic: %v", r)}
			d.log.Error().Str("channel", name).Str("post_id", p.ID).Interface("panic", r).Msg("channel panicked")
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rcpt, err := c.Deliver(cctx, p)
	observability.ObserveDelivery(name, err)
	observability.ObserveExternal(name, "deliver", statusOf(err), time.Since(start))
	if err != nil {
		d.log.Warn().Err(err).Str("channel", name).Str("post_id", p.ID).Msg("delivery failed")
		res.Error = err.Error()
		return res
	}
	d.log.Info().Str("channel", name).Str("post_id", p.ID).Bool("simulated", rcpt.Simulated).Msg("delivered")
	res.Success = true
	res.Simulated = rcpt.Simulated
	res.Ref = rcpt.Ref
	return res
}
