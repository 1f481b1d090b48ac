package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds every shutdown job.
const DefaultShutdownTimeout = 5 * time.Second

type job struct {
	name string
	run  func(context.Context) error
}

type Manager struct {
	mu              sync.Mutex
	runJobs         []job
	shutdownJobs    []job
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, shutdownTimeout: DefaultShutdownTimeout}
}

func (m *Manager) SetShutdownTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.shutdownTimeout = d
	m.mu.Unlock()
}

func (m *Manager) AddRun(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.runJobs = append(m.runJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

// AddShutdown registers cleanup; jobs run in registration order after all run
// jobs have returned.
func (m *Manager) AddShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.shutdownJobs = append(m.shutdownJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

func (m *Manager) JobNames() (run []string, shutdown []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.runJobs {
		run = append(run, j.name)
	}
	for _, j := range m.shutdownJobs {
		shutdown = append(shutdown, j.name)
	}
	return run, shutdown
}

// StartAndWait runs every run job until ctx is cancelled or one of them fails,
// then runs the shutdown jobs. Errors are joined and prefixed by job name.
func (m *Manager) StartAndWait(ctx context.Context) error {
	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	runJobs, shutdownJobs, timeout := m.snapshot()

	errCh := make(chan error, len(runJobs))
	var wg sync.WaitGroup
	for _, j := range runJobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			m.logger.Debug("run job started", "job", j.name)
			if err := j.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("run job failed", "job", j.name, "err", err)
				errCh <- fmt.Errorf("%s: %w", j.name, err)
				cancelRuns()
				return
			}
			m.logger.Debug("run job stopped", "job", j.name)
		}(j)
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		cancelRuns()
	case err := <-errCh:
		runErr = err
		cancelRuns()
	case <-doneCh:
	}

	<-doneCh
	close(errCh)
	for err := range errCh {
		if !errors.Is(runErr, err) {
			runErr = errors.Join(runErr, err)
		}
	}

	var shutdownErr error
	for _, j := range shutdownJobs {
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := j.run(sctx)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("shutdown job failed", "job", j.name, "err", err)
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(runErr, shutdownErr)
}

func (m *Manager) snapshot() ([]job, []job, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]job(nil), m.runJobs...), append([]job(nil), m.shutdownJobs...), m.shutdownTimeout
}
