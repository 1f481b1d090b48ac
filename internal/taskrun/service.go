// Package taskrun sequences task creation, dispatch and result recording.
// Commands run either inline with the request or on a single background
// worker fed by a bounded queue.
package taskrun

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mashiro/cli/internal/dispatch"
	"mashiro/cli/internal/taskstore"
)

var (
	ErrCommandRequired = errors.New("command is required")
	ErrQueueFull       = errors.New("task queue is full")
)

const DefaultQueueSize = 64

const (
	EventTaskCreated   = "task.created"
	EventTaskStarted   = "task.started"
	EventTaskFinished  = "task.finished"
	EventTaskCancelled = "task.cancelled"
)

type Request struct {
	Command    string          `json:"command"`
	Parameters dispatch.Params `json:"parameters"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return ErrCommandRequired
	}
	return nil
}

type Dispatcher interface {
	Dispatch(ctx context.Context, name string, params dispatch.Params) dispatch.Result
	Registry() *dispatch.Registry
}

// EventSink receives task lifecycle events.
type EventSink interface {
	Publish(topic string, task taskstore.Task)
}

type UsageRecorder interface {
	Record(ctx context.Context, command string, success bool) error
}

type Deps struct {
	Store      taskstore.Store
	Dispatcher Dispatcher
	Events     EventSink
	Usage      UsageRecorder
	Logger     *slog.Logger
	QueueSize  int
}

type Service struct {
	store      taskstore.Store
	dispatcher Dispatcher
	events     EventSink
	usage      UsageRecorder
	logger     *slog.Logger
	queue      chan string
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("task store is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := deps.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Service{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		usage:      deps.Usage,
		logger:     logger,
		queue:      make(chan string, size),
	}, nil
}

// Execute creates a task and runs it before returning. The returned task is
// always terminal unless the store itself failed.
func (s *Service) Execute(ctx context.Context, req Request) (taskstore.Task, error) {
	if err := req.Validate(); err != nil {
		return taskstore.Task{}, err
	}
	task, err := s.store.Create(ctx, strings.TrimSpace(req.Command), req.Parameters)
	if err != nil {
		return taskstore.Task{}, err
	}
	s.publish(EventTaskCreated, task)
	return s.run(ctx, task.TaskID)
}

// Submit creates a pending task and queues it for the background worker.
func (s *Service) Submit(ctx context.Context, req Request) (taskstore.Task, error) {
	if err := req.Validate(); err != nil {
		return taskstore.Task{}, err
	}
	task, err := s.store.Create(ctx, strings.TrimSpace(req.Command), req.Parameters)
	if err != nil {
		return taskstore.Task{}, err
	}
	s.publish(EventTaskCreated, task)
	select {
	case s.queue <- task.TaskID:
		return task, nil
	default:
		if cancelled, cerr := s.store.Cancel(ctx, task.TaskID); cerr == nil {
			task = cancelled
			s.publish(EventTaskCancelled, task)
		}
		s.logger.Warn("task queue full", "task_id", task.TaskID, "command", task.Command)
		return task, ErrQueueFull
	}
}

// RunWorker drains the queue one task at a time until ctx is done.
func (s *Service) RunWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-s.queue:
			if _, err := s.run(ctx, id); err != nil {
				if errors.Is(err, taskstore.ErrInvalidTransition) {
					s.logger.Info("skip queued task", "task_id", id, "reason", err.Error())
					continue
				}
				s.logger.Error("queued task failed", "task_id", id, "err", err)
			}
		}
	}
}

func (s *Service) QueueDepth() int {
	return len(s.queue)
}

func (s *Service) run(ctx context.Context, taskID string) (taskstore.Task, error) {
	// bookkeeping must land even if the caller goes away mid-command
	storeCtx := context.WithoutCancel(ctx)
	task, err := s.store.Start(storeCtx, taskID)
	if err != nil {
		return task, err
	}
	s.publish(EventTaskStarted, task)

	// no store lock is held here; the handler may block on the OS
	res := s.dispatcher.Dispatch(ctx, task.Command, task.Parameters)

	task, err = s.store.UpdateResult(storeCtx, taskID, res)
	if err != nil {
		return task, err
	}
	s.publish(EventTaskFinished, task)
	if s.usage != nil {
		if err := s.usage.Record(storeCtx, task.Command, res.Success); err != nil {
			s.logger.Warn("record command usage failed", "command", task.Command, "err", err)
		}
	}
	s.logger.Info("task finished", "task_id", task.TaskID, "command", task.Command, "status", task.Status)
	return task, nil
}

func (s *Service) Get(ctx context.Context, taskID string) (taskstore.Task, error) {
	return s.store.Get(ctx, taskID)
}

func (s *Service) List(ctx context.Context, filter *taskstore.Status) ([]taskstore.Task, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Cancel(ctx context.Context, taskID string) (taskstore.Task, error) {
	task, err := s.store.Cancel(ctx, taskID)
	if err != nil {
		return task, err
	}
	s.publish(EventTaskCancelled, task)
	s.logger.Info("task cancelled", "task_id", task.TaskID, "command", task.Command)
	return task, nil
}

func (s *Service) Commands() map[string][]string {
	return s.dispatcher.Registry().ListCommands()
}

func (s *Service) CommandCount() int {
	return s.dispatcher.Registry().Len()
}

func (s *Service) publish(topic string, task taskstore.Task) {
	if s.events == nil {
		return
	}
	s.events.Publish(topic, task)
}
