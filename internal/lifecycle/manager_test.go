package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

func quietManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManager_ContextCancelRunsShutdown(t *testing.T) {
	mgr := quietManager()
	steps := make([]string, 0, 4)
	var mu sync.Mutex
	appendStep := func(v string) {
		mu.Lock()
		steps = append(steps, v)
		mu.Unlock()
	}

	mgr.AddRun("http-server", func(ctx context.Context) error {
		<-ctx.Done()
		appendStep("run-http-stopped")
		return nil
	})
	mgr.AddRun("task-worker", func(ctx context.Context) error {
		<-ctx.Done()
		appendStep("run-worker-stopped")
		return ctx.Err()
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		appendStep("shutdown-db")
		return nil
	})

	parent, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mgr.StartAndWait(parent)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("StartAndWait should not fail: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, want := range []string{"run-http-stopped", "run-worker-stopped", "shutdown-db"} {
		if !slices.Contains(steps, want) {
			t.Fatalf("missing %s marker: %#v", want, steps)
		}
	}
	if steps[len(steps)-1] != "shutdown-db" {
		t.Fatalf("shutdown should run last: %#v", steps)
	}
}

func TestManager_RunErrorTriggersShutdown(t *testing.T) {
	mgr := quietManager()
	runErr := errors.New("boom")
	shutdownCalled := 0
	workerStopped := make(chan struct{})

	mgr.AddRun("http-server", func(context.Context) error {
		return runErr
	})
	mgr.AddRun("task-worker", func(ctx context.Context) error {
		<-ctx.Done()
		close(workerStopped)
		return nil
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		shutdownCalled++
		return nil
	})

	err := mgr.StartAndWait(context.Background())
	if !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http-server: boom") {
		t.Fatalf("expected job name prefix, got %v", err)
	}
	select {
	case <-workerStopped:
	default:
		t.Fatal("sibling run job was not cancelled")
	}
	if shutdownCalled != 1 {
		t.Fatalf("expected shutdown called once, got %d", shutdownCalled)
	}
}

func TestManager_ShutdownErrorsAreJoined(t *testing.T) {
	mgr := quietManager()
	errA := errors.New("a")
	errB := errors.New("b")
	mgr.AddShutdown("http-server-shutdown", func(context.Context) error { return errA })
	mgr.AddShutdown("close-db", func(context.Context) error { return errB })

	err := mgr.StartAndWait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both shutdown errors, got %v", err)
	}
}

func TestManager_ShutdownJobsGetDeadline(t *testing.T) {
	mgr := quietManager()
	mgr.SetShutdownTimeout(50 * time.Millisecond)
	var hadDeadline bool
	mgr.AddShutdown("close-db", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	if err := mgr.StartAndWait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hadDeadline {
		t.Fatal("expected shutdown context deadline")
	}
}

func TestManager_JobNames(t *testing.T) {
	mgr := quietManager()
	mgr.AddRun("http-server", func(context.Context) error { return nil })
	mgr.AddRun("nil-job", nil)
	mgr.AddShutdown("close-db", func(context.Context) error { return nil })
	run, shutdown := mgr.JobNames()
	if !slices.Equal(run, []string{"http-server"}) || !slices.Equal(shutdown, []string{"close-db"}) {
		t.Fatalf("unexpected names: %v %v", run, shutdown)
	}
}
