package supervisor_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hotel_agent/internal/supervisor"
)

type fakeServer struct {
	stop     chan struct{}
	once     sync.Once
	listened atomic.Int32
	shutdown atomic.Int32
	failWith error
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (f *fakeServer) ListenAndServe() error {
	f.listened.Add(1)
	if f.failWith != nil {
		return f.failWith
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdown.Add(1)
	f.once.Do(func() { close(f.stop) })
	return nil
}

func TestHTTPService_ShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := supervisor.NewHTTPService("api", srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	for srv.listened.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if srv.shutdown.Load() != 1 {
		t.Fatalf("shutdown called %d times", srv.shutdown.Load())
	}
	if svc.String() != "api" {
		t.Fatalf("name = %s", svc.String())
	}
}

func TestHTTPService_ListenError(t *testing.T) {
	srv := newFakeServer()
	srv.failWith = errors.New("address already in use")
	err := supervisor.NewHTTPService("metrics", srv, 0).Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "address already in use") {
		t.Fatalf("got %v", err)
	}
}

type panicky struct{ calls atomic.Int32 }

func (p *panicky) Serve(ctx context.Context) error {
	if p.calls.Add(1) == 1 {
		panic("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *panicky) String() string { return "panicky" }

func TestTree_RestartsPanickingServiceAndLogs(t *testing.T) {
	var buf safeBuffer
	tree := supervisor.NewTree(zerolog.New(&buf), supervisor.TreeConfig{FailureBackoff: 10 * time.Millisecond})

	svc := &panicky{}
	tree.AddJobService(svc)
	srv := newFakeServer()
	tree.AddAPIService(supervisor.NewHTTPService("api", srv, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errc := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.calls.Load() < 2 {
		t.Fatal("service was not restarted after panic")
	}
	cancel()
	<-errc

	if srv.shutdown.Load() == 0 {
		t.Fatal("api server not shut down")
	}
	if !strings.Contains(buf.String(), `"component":"supervisor"`) || !strings.Contains(buf.String(), "panicky") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// slowStop takes a while to return after cancellation, like a scheduler
// waiting for its in-flight cycle.
type slowStop struct {
	started  atomic.Bool
	finished atomic.Bool
	delay    time.Duration
}

func (s *slowStop) Serve(ctx context.Context) error {
	s.started.Store(true)
	<-ctx.Done()
	time.Sleep(s.delay)
	s.finished.Store(true)
	return ctx.Err()
}

func (s *slowStop) String() string { return "slow-stop" }

func TestTree_JobsBranchGetsItsOwnStopBudget(t *testing.T) {
	tree := supervisor.NewTree(zerolog.Nop(), supervisor.TreeConfig{
		ShutdownTimeout:     50 * time.Millisecond,
		JobsShutdownTimeout: 2 * time.Second,
	})
	job := &slowStop{delay: 300 * time.Millisecond}
	tree.AddJobService(job)

	ctx, cancel := context.WithCancel(context.Background())
	errc := tree.ServeBackground(ctx)
	for !job.started.Load() {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-errc:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
	if !job.finished.Load() {
		t.Fatal("tree returned before the job finished stopping")
	}
}
