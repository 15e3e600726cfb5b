package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hotel_agent/internal/app"
	"hotel_agent/internal/domain"
)

type recordingRunner struct {
	mu    sync.Mutex
	reqs  []app.Request
	hold  time.Duration
	busy  bool
	skips int
}

func (r *recordingRunner) RunCycle(ctx context.Context, req app.Request) (*domain.CycleRun, error) {
	r.mu.Lock()
	if r.busy {
		r.skips++
		r.mu.Unlock()
		return nil, app.ErrCycleInProgress
	}
	r.busy = true
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()

	time.Sleep(r.hold)
	if ctx.Err() != nil {
		panic("cycle context must not be cancelled by shutdown")
	}

	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
	return &domain.CycleRun{ID: "run", Trigger: req.Trigger, Variety: req.Variety}, nil
}

func (r *recordingRunner) snapshot() ([]app.Request, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.Request(nil), r.reqs...), r.skips
}

func TestScheduler_RunOnStartAndPeriodicFirings(t *testing.T) {
	rr := &recordingRunner{}
	s := app.NewScheduler(rr, true,
		app.Trigger{Name: app.TriggerRegular, Every: 20 * time.Millisecond},
		app.Trigger{Name: app.TriggerVariety, Every: 30 * time.Millisecond, Variety: true},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = s.Serve(ctx)

	reqs, _ := rr.snapshot()
	if len(reqs) < 3 {
		t.Fatalf("expected several cycles, got %d", len(reqs))
	}
	var startup, regular, variety int
	for _, r := range reqs {
		switch r.Trigger {
		case app.TriggerStartup:
			startup++
		case app.TriggerRegular:
			regular++
			if r.Variety {
				t.Fatalf("regular trigger asked for variety")
			}
		case app.TriggerVariety:
			variety++
			if !r.Variety {
				t.Fatalf("variety trigger lost its flag")
			}
		}
	}
	if startup != 1 {
		t.Fatalf("want one startup cycle, got %d", startup)
	}
	if regular == 0 || variety == 0 {
		t.Fatalf("both producers should fire: regular=%d variety=%d", regular, variety)
	}
}

func TestScheduler_OverlappingFiringsAreSkipped(t *testing.T) {
	rr := &recordingRunner{hold: 120 * time.Millisecond}
	s := app.NewScheduler(rr, true, app.Trigger{Name: app.TriggerRegular, Every: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = s.Serve(ctx)

	reqs, skips := rr.snapshot()
	if len(reqs) != 1 {
		t.Fatalf("only the startup cycle should run, got %d", len(reqs))
	}
	if skips == 0 {
		t.Fatalf("expected skipped firings while a cycle was running")
	}
}

func TestScheduler_ShutdownWaitsForInflightCycle(t *testing.T) {
	rr := &recordingRunner{hold: 80 * time.Millisecond}
	s := app.NewScheduler(rr, true)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_ = s.Serve(ctx)
	if time.Since(start) < 80*time.Millisecond {
		t.Fatalf("Serve returned before the in-flight cycle finished")
	}
	if reqs, _ := rr.snapshot(); len(reqs) != 1 {
		t.Fatalf("want 1 cycle, got %d", len(reqs))
	}
}

func TestDefaultTriggers(t *testing.T) {
	ts := app.DefaultTriggers(2*time.Hour, 6*time.Hour)
	if len(ts) != 2 || ts[0].Variety || !ts[1].Variety || ts[1].Every != 6*time.Hour {
		t.Fatalf("unexpected triggers: %+v", ts)
	}
}
