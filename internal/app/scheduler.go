package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/domain"
)

// CycleRunner is what the scheduler drives; *Orchestrator implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, req Request) (*domain.CycleRun, error)
}

// Trigger is one periodic producer. Firings are aligned to wall-clock
// multiples of Every (every 2h fires at 00:00, 02:00, ...).
type Trigger struct {
	Name    string
	Every   time.Duration
	Variety bool
}

type Scheduler struct {
	runner     CycleRunner
	triggers   []Trigger
	runOnStart bool
	now        func() time.Time
	log        zerolog.Logger

	inflight sync.WaitGroup
}

func NewScheduler(r CycleRunner, runOnStart bool, triggers ...Trigger) *Scheduler {
	return &Scheduler{
		runner:     r,
		triggers:   append([]Trigger(nil), triggers...),
		runOnStart: runOnStart,
		now:        time.Now,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// DefaultTriggers is the regular two-hourly cycle plus the six-hourly variety
// cycle.
func DefaultTriggers(regular, variety time.Duration) []Trigger {
	return []Trigger{
		{Name: TriggerRegular, Every: regular},
		{Name: TriggerVariety, Every: variety, Variety: true},
	}
}

func (s *Scheduler) String() string { return "scheduler" }

// Serve runs the producers and dispatches their firings until ctx is done.
// Cycles already started are allowed to finish before Serve returns.
func (s *Scheduler) Serve(ctx context.Context) error {
	fires := make(chan Trigger)
	var producers sync.WaitGroup
	for _, t := range s.triggers {
		if t.Every <= 0 {
			s.log.Warn().Str("trigger", t.Name).Msg("non-positive interval, trigger disabled")
			continue
		}
		producers.Add(1)
		go func(t Trigger) {
			defer producers.Done()
			s.produce(ctx, t, fires)
		}(t)
	}

	s.log.Info().Int("triggers", len(s.triggers)).Bool("run_on_start", s.runOnStart).Msg("scheduler started")
	if s.runOnStart {
		s.dispatch(ctx, Trigger{Name: TriggerStartup})
	}

	for {
		select {
		case <-ctx.Done():
			producers.Wait()
			s.inflight.Wait()
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case t := <-fires:
			s.dispatch(ctx, t)
		}
	}
}

func (s *Scheduler) produce(ctx context.Context, t Trigger, out chan<- Trigger) {
	for {
		now := s.now()
		timer := time.NewTimer(nextFire(now, t.Every).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

// nextFire is the first multiple of every strictly after now.
func nextFire(now time.Time, every time.Duration) time.Time {
	return now.Truncate(every).Add(every)
}

// dispatch starts a cycle without waiting for it. The cycle runs on a context
// that is not cancelled by shutdown.
func (s *Scheduler) dispatch(ctx context.Context, t Trigger) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		run, err := s.runner.RunCycle(context.WithoutCancel(ctx), Request{Trigger: t.Name, Variety: t.Variety})
		switch {
		case errors.Is(err, ErrCycleInProgress):
			s.log.Info().Str("trigger", t.Name).Msg("cycle already running, firing skipped")
		case err != nil:
			s.log.Error().Err(err).Str("trigger", t.Name).Msg("scheduled cycle failed")
		default:
			s.log.Info().Str("trigger", t.Name).Str("cycle_id", run.ID).Str("location", run.Location).Msg("scheduled cycle done")
		}
	}()
}
