package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"mashiro/cli/internal/dispatch"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrCompletedTask     = fmt.Errorf("%w: cannot cancel completed task", ErrInvalidTransition)
)

var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled, StatusCompleted, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid task status %q", raw)
	}
	return st, nil
}

// CheckTransition reports whether a task may move from one status to another.
func CheckTransition(from, to Status) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	if to == StatusCancelled && from == StatusCompleted {
		return ErrCompletedTask
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func resultStatus(res dispatch.Result) Status {
	if res.Success {
		return StatusCompleted
	}
	return StatusFailed
}

type Task struct {
	TaskID     string           `json:"task_id"`
	Command    string           `json:"command"`
	Parameters dispatch.Params  `json:"parameters"`
	Status     Status           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Result     *dispatch.Result `json:"result"`
}

func (t Task) clone() Task {
	out := t
	out.Parameters = t.Parameters.Clone()
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		out.FinishedAt = &v
	}
	if t.Result != nil {
		v := t.Result.Normalize()
		out.Result = &v
	}
	return out
}

// Store owns task records and is the only component that mutates their
// status or result.
type Store interface {
	Create(ctx context.Context, command string, params dispatch.Params) (Task, error)
	Start(ctx context.Context, taskID string) (Task, error)
	UpdateResult(ctx context.Context, taskID string, res dispatch.Result) (Task, error)
	Get(ctx context.Context, taskID string) (Task, error)
	List(ctx context.Context, filter *Status) ([]Task, error)
	Cancel(ctx context.Context, taskID string) (Task, error)
}

type IDGenerator interface {
	NextID() string
}

// SequenceIDs hands out task_1, task_2, ... and never repeats within a process.
type SequenceIDs struct {
	seq atomic.Uint64
}

func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

func (g *SequenceIDs) NextID() string {
	return FormatTaskID(g.seq.Add(1))
}

func FormatTaskID(seq uint64) string {
	return fmt.Sprintf("task_%d", seq)
}
