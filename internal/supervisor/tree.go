package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

type TreeConfig struct {
	// Failures before the supervisor backs off. Default 5.
	FailureThreshold float64
	// Failure decay rate in seconds. Default 30.
	FailureDecay float64
	// Default 15s.
	FailureBackoff time.Duration
	// How long each service gets to stop. Default 10s.
	ShutdownTimeout time.Duration
	// Stop budget for the jobs branch, which waits for an in-flight cycle.
	// Defaults to ShutdownTimeout.
	JobsShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor with one branch for the API servers and one for
// the publishing jobs.
type Tree struct {
	root *suture.Supervisor
	api  *suture.Supervisor
	jobs *suture.Supervisor
}

func NewTree(l zerolog.Logger, cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.JobsShutdownTimeout < cfg.ShutdownTimeout {
		cfg.JobsShutdownTimeout = cfg.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	jobsSpec := spec
	jobsSpec.Timeout = cfg.JobsShutdownTimeout
	// The root has to outwait the slowest branch.
	rootSpec := jobsSpec
	rootSpec.Timeout = cfg.JobsShutdownTimeout + time.Second
	rootSpec.EventHook = EventHook(l)

	t := &Tree{
		root: suture.New("hotel_agent", rootSpec),
		api:  suture.New("api", spec),
		jobs: suture.New("jobs", jobsSpec),
	}
	t.root.Add(t.api)
	t.root.Add(t.jobs)
	return t
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken { return t.api.Add(svc) }

func (t *Tree) AddJobService(svc suture.Service) suture.ServiceToken { return t.jobs.Add(svc) }

func (t *Tree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// EventHook logs supervisor events through zerolog.
func EventHook(l zerolog.Logger) suture.EventHook {
	l = l.With().Str("component", "supervisor").Logger()
	return func(e suture.Event) {
		ev := l.Warn()
		switch e.Type() {
		case suture.EventTypeServicePanic:
			ev = l.Error()
		case suture.EventTypeResume:
			ev = l.Info()
		}
		ev.Fields(e.Map()).Msg(e.String())
	}
}
