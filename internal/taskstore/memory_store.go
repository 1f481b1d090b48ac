package taskstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mashiro/cli/internal/dispatch"
)

type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
	ids   IDGenerator
	now   func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithIDGenerator(ids IDGenerator) MemoryOption {
	return func(s *MemoryStore) {
		if ids != nil {
			s.ids = ids
		}
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks: map[string]*Task{},
		ids:   NewSequenceIDs(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, command string, params dispatch.Params) (Task, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Task{}, fmt.Errorf("command is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.NextID()
	if _, exists := s.tasks[id]; exists {
		return Task{}, fmt.Errorf("task id %q already allocated", id)
	}
	task := &Task{
		TaskID:     id,
		Command:    command,
		Parameters: params.Clone(),
		Status:     StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	s.tasks[id] = task
	s.order = append(s.order, id)
	return task.clone(), nil
}

func (s *MemoryStore) Start(_ context.Context, taskID string) (Task, error) {
	return s.mutate(taskID, func(t *Task) error {
		if err := CheckTransition(t.Status, StatusRunning); err != nil {
			return err
		}
		now := s.now().UTC()
		t.Status = StatusRunning
		t.StartedAt = &now
		return nil
	})
}

func (s *MemoryStore) UpdateResult(_ context.Context, taskID string, res dispatch.Result) (Task, error) {
	return s.mutate(taskID, func(t *Task) error {
		next := resultStatus(res)
		if err := CheckTransition(t.Status, next); err != nil {
			return err
		}
		now := s.now().UTC()
		stored := res.Normalize()
		t.Status = next
		t.Result = &stored
		t.FinishedAt = &now
		return nil
	})
}

func (s *MemoryStore) Cancel(_ context.Context, taskID string) (Task, error) {
	return s.mutate(taskID, func(t *Task) error {
		if err := CheckTransition(t.Status, StatusCancelled); err != nil {
			return err
		}
		now := s.now().UTC()
		t.Status = StatusCancelled
		t.FinishedAt = &now
		return nil
	})
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter *Status) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		if filter != nil && t.Status != *filter {
			continue
		}
		out = append(out, t.clone())
	}
	return out, nil
}

// mutate applies fn under the write lock. A rejected change leaves the task
// untouched.
func (s *MemoryStore) mutate(taskID string, fn func(*Task) error) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	draft := t.clone()
	if err := fn(&draft); err != nil {
		return t.clone(), err
	}
	*t = draft
	return t.clone(), nil
}
