package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/domain"
)

type State string

const (
	StateIdle         State = "idle"
	StateSelecting    State = "selecting"
	StateAcquiring    State = "acquiring"
	StateSynthesizing State = "synthesizing"
	StatePersisting   State = "persisting"
	StateDistributing State = "distributing"
	StateFailed       State = "failed"
	StateCompleted    State = "completed"
)

// Triggers.
const (
	TriggerRegular = "regular"
	TriggerVariety = "variety"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
)

var (
	ErrCycleInProgress = errors.New("a publishing cycle is already running")
	ErrNoHotels        = errors.New("no hotels to publish")
)

// StageError is a cycle-fatal failure tagged with the stage it happened in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Request asks for one cycle. A non-empty Location skips selection; Variety
// picks uniformly from the whole pool instead of by time of day.
type Request struct {
	Trigger  string
	Variety  bool
	Location string
}

type Orchestrator struct {
	selector *LocationSelector
	acquirer *Acquirer
	synth    domain.Synthesizer
	repo     domain.PostRepository
	dist     *Distributor
	cache    domain.Cache
	now      func() time.Time
	log      zerolog.Logger

	running atomic.Bool
	state   atomic.Value // State

	mu   sync.RWMutex
	last *domain.CycleRun
}

func NewOrchestrator(
	sel *LocationSelector,
	acq *Acquirer,
	synth domain.Synthesizer,
	repo domain.PostRepository,
	dist *Distributor,
	cache domain.Cache,
) *Orchestrator {
	o := &Orchestrator{
		selector: sel,
		acquirer: acq,
		synth:    synth,
		repo:     repo,
		dist:     dist,
		cache:    cache,
		now:      time.Now,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
	o.state.Store(StateIdle)
	return o
}

// WithClock replaces the orchestrator's clock. Used by tests and the CLI.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// State reports the stage the current cycle is in, or idle.
func (o *Orchestrator) State() State { return o.state.Load().(State) }

// Running reports whether a cycle holds the exclusivity token.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// WaitIdle blocks until no cycle holds the token or ctx is done.
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for o.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// LastRun returns a copy of the most recently finished cycle, if any.
func (o *Orchestrator) LastRun() (domain.CycleRun, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return domain.CycleRun{}, false
	}
	return cloneRun(*o.last), true
}

// RunCycle executes one publishing cycle. It returns ErrCycleInProgress at
// once when another cycle holds the token; nothing is queued.
func (o *Orchestrator) RunCycle(ctx context.Context, req Request) (run *domain.CycleRun, err error) {
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	if !o.running.CompareAndSwap(false, true) {
		observability.ObserveCycle(req.Trigger, "skipped")
		return nil, ErrCycleInProgress
	}
	observability.CycleRunning.Set(1)

	run = &domain.CycleRun{
		ID:        uuid.NewString(),
		Trigger:   req.Trigger,
		Variety:   req.Variety,
		StartedAt: o.now().UTC(),
	}
	l := o.log.With().Str("cycle_id", run.ID).Str("trigger", req.Trigger).Logger()
	stage := StateIdle
	stageStart := time.Now()
	enter := func(s State) {
		if stage != StateIdle {
			observability.ObserveStage(string(stage), time.Since(stageStart))
		}
		stage, stageStart = s, time.Now()
		o.state.Store(s)
		l.Debug().Str("stage", string(s)).Msg("stage entered")
	}

	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
			o.markFailed(l, run, stage, err)
		}
		if err == nil {
			observability.ObserveStage(string(stage), time.Since(stageStart))
			run.State = string(StateCompleted)
			observability.ObserveCycle(req.Trigger, "completed")
		} else {
			observability.ObserveCycle(req.Trigger, "failed")
		}
		run.FinishedAt = o.now().UTC()
		o.mu.Lock()
		last := cloneRun(*run)
		o.last = &last
		o.mu.Unlock()

		o.state.Store(StateIdle)
		observability.CycleRunning.Set(0)
		o.running.Store(false)
	}()

	enter(StateSelecting)
	loc := o.selectLocation(req)
	run.Location = loc
	l = l.With().Str("location", loc).Logger()
	l.Info().Bool("variety", req.Variety).Msg("cycle started")

	enter(StateAcquiring)
	acq := o.acquirer.Acquire(ctx, loc)
	run.UsedFallback, run.FallbackReason = acq.UsedFallback, acq.Reason
	// Unreachable while Acquire falls back on empty results.
	if len(acq.Hotels) == 0 {
		err = &StageError{Stage: stage, Err: ErrNoHotels}
		o.markFailed(l, run, stage, err)
		return run, err
	}

	enter(StateSynthesizing)
	content, serr := o.synth.Synthesize(ctx, loc, domain.CloneHotels(acq.Hotels))
	if serr != nil {
		err = &StageError{Stage: stage, Err: serr}
		o.markFailed(l, run, stage, err)
		return run, err
	}

	enter(StatePersisting)
	post := domain.NewPost(loc, acq.Hotels, content, o.now())
	post.Status = domain.StatusPublished
	if perr := o.repo.SavePost(ctx, post.Clone()); perr != nil {
		err = &StageError{Stage: stage, Err: perr}
		o.markFailed(l, run, stage, err)
		return run, err
	}
	run.PostID = post.ID
	o.invalidateRecent(ctx)

	enter(StateDistributing)
	results := o.dist.Distribute(ctx, post)
	run.Channels = make(map[string]domain.ChannelResult, len(results))
	ok := 0
	for _, r := range results {
		run.Channels[r.Channel] = r
		if r.Success {
			ok++
		}
	}

	l.Info().
		Str("post_id", post.ID).
		Bool("fallback", run.UsedFallback).
		Int("channels_ok", ok).
		Int("channels", len(results)).
		Msg("cycle completed")
	return run, nil
}

func (o *Orchestrator) selectLocation(req Request) string {
	if loc := strings.TrimSpace(req.Location); loc != "" {
		return loc
	}
	if req.Variety {
		return o.selector.UniformRandom()
	}
	return o.selector.ByTimeOfDay(o.now())
}

func (o *Orchestrator) markFailed(l zerolog.Logger, run *domain.CycleRun, stage State, err error) {
	o.state.Store(StateFailed)
	run.State = string(StateFailed)
	run.FailedStage = string(stage)
	run.Err = err.Error()
	l.Error().Err(err).Str("stage", string(stage)).Msg("cycle failed")
}

// invalidateRecent drops the recent-posts cache so readers see the new post.
func (o *Orchestrator) invalidateRecent(ctx context.Context) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Del(ctx, RecentPostsCacheKey); err != nil {
		o.log.Warn().Err(err).Msg("recent posts cache invalidation failed")
	}
}

func cloneRun(r domain.CycleRun) domain.CycleRun {
	out := r
	if r.Channels != nil {
		out.Channels = make(map[string]domain.ChannelResult, len(r.Channels))
		for k, v := range r.Channels {
			out.Channels[k] = v
		}
	}
	return out
}
