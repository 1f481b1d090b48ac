package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dbmodel "mashiro/cli/internal/db"
	"mashiro/cli/internal/dispatch"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(*testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite", open: func(t *testing.T) Store {
			t.Helper()
			dsn := fmt.Sprintf("file:taskstore_%d?mode=memory&cache=shared", time.Now().UnixNano())
			gdb, err := dbmodel.OpenSQLiteWithMigrations(dsn)
			if err != nil {
				t.Fatalf("OpenSQLiteWithMigrations failed: %v", err)
			}
			t.Cleanup(func() { _ = dbmodel.Close(gdb) })
			s, err := NewSQLStore(gdb)
			if err != nil {
				t.Fatalf("NewSQLStore failed: %v", err)
			}
			return s
		}},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.open(t))
		})
	}
}

func TestStore_CreateThenGetIsPending(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "open_browser", dispatch.Params{"url": "example.com"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		got, err := s.Get(ctx, created.TaskID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != StatusPending {
			t.Fatalf("expected pending, got %s", got.Status)
		}
		if got.Result != nil {
			t.Fatalf("expected nil result, got %#v", got.Result)
		}
		if got.Command != "open_browser" || got.Parameters.String("url", "") != "example.com" {
			t.Fatalf("unexpected task: %#v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Fatal("created_at should be set")
		}
	})
}

func TestStore_IDsAreUniqueAndOrdered(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seen := map[string]struct{}{}
		for i := 0; i < 5; i++ {
			task, err := s.Create(ctx, "type_text", nil)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if _, dup := seen[task.TaskID]; dup {
				t.Fatalf("duplicate task id %s", task.TaskID)
			}
			seen[task.TaskID] = struct{}{}
		}
		tasks, err := s.List(ctx, nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for i, task := range tasks {
			if task.TaskID != FormatTaskID(uint64(i+1)) {
				t.Fatalf("expected insertion order, got %s at %d", task.TaskID, i)
			}
		}
	})
}

func TestStore_CreateRejectsEmptyCommand(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.Create(context.Background(), "  ", nil); err == nil {
			t.Fatal("expected error for empty command")
		}
	})
}

func TestStore_UpdateResultSetsTerminalStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ok, _ := s.Create(ctx, "open_browser", nil)
		bad, _ := s.Create(ctx, "screenshot", nil)
		if _, err := s.Start(ctx, ok.TaskID); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		if _, err := s.UpdateResult(ctx, ok.TaskID, dispatch.Succeeded("browser_opened", map[string]any{"url": "https://example.com"})); err != nil {
			t.Fatalf("UpdateResult failed: %v", err)
		}
		if _, err := s.UpdateResult(ctx, bad.TaskID, dispatch.Failed("screenshot_failed", errors.New("no display"))); err != nil {
			t.Fatalf("UpdateResult failed: %v", err)
		}

		got, _ := s.Get(ctx, ok.TaskID)
		if got.Status != StatusCompleted || got.Result == nil || got.Result.Action != "browser_opened" {
			t.Fatalf("unexpected completed task: %#v", got)
		}
		if got.StartedAt == nil || got.FinishedAt == nil {
			t.Fatalf("timestamps should be set: %#v", got)
		}
		if v, _ := got.Result.Field("url"); v != "https://example.com" {
			t.Fatalf("result fields should be stored: %#v", got.Result)
		}
		got, _ = s.Get(ctx, bad.TaskID)
		if got.Status != StatusFailed || got.Result.Error != "no display" {
			t.Fatalf("unexpected failed task: %#v", got)
		}

		if _, err := s.UpdateResult(ctx, ok.TaskID, dispatch.Succeeded("again", nil)); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition on terminal task, got %v", err)
		}
		if _, err := s.UpdateResult(ctx, "task_missing", dispatch.Succeeded("x", nil)); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestStore_CancelPendingThenRejectSecondCancel(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		task, _ := s.Create(ctx, "open_app", nil)

		cancelled, err := s.Cancel(ctx, task.TaskID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if cancelled.Status != StatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}
		if _, err := s.Cancel(ctx, task.TaskID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("second cancel should be rejected, got %v", err)
		}
		got, _ := s.Get(ctx, task.TaskID)
		if got.Status != StatusCancelled {
			t.Fatalf("state should be unchanged, got %s", got.Status)
		}
		if _, err := s.Start(ctx, task.TaskID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled task must not start, got %v", err)
		}
	})
}

func TestStore_CancelCompletedIsRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		task, _ := s.Create(ctx, "open_browser", nil)
		if _, err := s.UpdateResult(ctx, task.TaskID, dispatch.Succeeded("browser_opened", nil)); err != nil {
			t.Fatalf("UpdateResult failed: %v", err)
		}
		before, _ := s.Get(ctx, task.TaskID)

		_, err := s.Cancel(ctx, task.TaskID)
		if !errors.Is(err, ErrCompletedTask) {
			t.Fatalf("expected completed-task error, got %v", err)
		}
		after, _ := s.Get(ctx, task.TaskID)
		if after.Status != StatusCompleted || !after.FinishedAt.Equal(*before.FinishedAt) {
			t.Fatalf("task should be unmodified: before=%#v after=%#v", before, after)
		}
	})
}

func TestStore_CancelRunningIsRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		task, _ := s.Create(ctx, "type_text", nil)
		_, _ = s.Start(ctx, task.TaskID)
		if _, err := s.Cancel(ctx, task.TaskID); !errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrCompletedTask) {
			t.Fatalf("expected plain invalid transition, got %v", err)
		}
	})
}

func TestStore_UnknownTask(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Get(ctx, "nonexistent_id"); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := s.Cancel(ctx, "nonexistent_id"); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := s.Start(ctx, "nonexistent_id"); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestStore_ListFilterKeepsCreationOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var failedIDs []string
		for i := 0; i < 6; i++ {
			task, _ := s.Create(ctx, "screenshot", nil)
			if i%2 == 0 {
				_, _ = s.UpdateResult(ctx, task.TaskID, dispatch.Failed("screenshot_failed", errors.New("x")))
				failedIDs = append(failedIDs, task.TaskID)
			} else {
				_, _ = s.UpdateResult(ctx, task.TaskID, dispatch.Succeeded("screenshot_taken", nil))
			}
		}
		failed := StatusFailed
		tasks, err := s.List(ctx, &failed)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(tasks) != len(failedIDs) {
			t.Fatalf("expected %d failed tasks, got %d", len(failedIDs), len(tasks))
		}
		for i, task := range tasks {
			if task.TaskID != failedIDs[i] || task.Status != StatusFailed {
				t.Fatalf("unexpected task at %d: %#v", i, task)
			}
		}
		all, _ := s.List(ctx, nil)
		if len(all) != 6 {
			t.Fatalf("expected 6 tasks, got %d", len(all))
		}
	})
}

func TestStore_ReturnedTasksAreCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		params := dispatch.Params{"text": "hi"}
		task, _ := s.Create(ctx, "type_text", params)
		params["text"] = "changed"
		task.Parameters["text"] = "mutated"

		got, _ := s.Get(ctx, task.TaskID)
		if got.Parameters.String("text", "") != "hi" {
			t.Fatalf("stored parameters must be immutable, got %#v", got.Parameters)
		}
	})
}

func TestStore_NestedParametersAreCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		params := dispatch.Params{"opts": map[string]any{"k": "orig"}}
		task, err := s.Create(ctx, "type_text", params)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		params["opts"].(map[string]any)["k"] = "caller"
		task.Parameters["opts"].(map[string]any)["k"] = "created"

		got, _ := s.Get(ctx, task.TaskID)
		got.Parameters["opts"].(map[string]any)["k"] = "mutated"

		listed, _ := s.List(ctx, nil)
		listed[0].Parameters["opts"].(map[string]any)["k"] = "listed"

		again, _ := s.Get(ctx, task.TaskID)
		if v := again.Parameters["opts"].(map[string]any)["k"]; v != "orig" {
			t.Fatalf("nested parameters leaked out of the store, got %v", v)
		}
	})
}

func TestStore_NestedResultFieldsAreCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		task, _ := s.Create(ctx, "list_windows", nil)
		fields := map[string]any{"window": map[string]any{"title": "orig"}}
		if _, err := s.UpdateResult(ctx, task.TaskID, dispatch.Succeeded("windows_listed", fields)); err != nil {
			t.Fatalf("UpdateResult failed: %v", err)
		}
		got, _ := s.Get(ctx, task.TaskID)
		got.Result.Fields["window"].(map[string]any)["title"] = "mutated"

		again, _ := s.Get(ctx, task.TaskID)
		if v := again.Result.Fields["window"].(map[string]any)["title"]; v != "orig" {
			t.Fatalf("nested result fields leaked out of the store, got %v", v)
		}
	})
}

func TestMemoryStore_ConcurrentCreatesDoNotLoseTasks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := s.Create(ctx, "type_text", nil)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if _, err := s.UpdateResult(ctx, task.TaskID, dispatch.Succeeded("text_typed", nil)); err != nil {
				t.Errorf("UpdateResult failed: %v", err)
			}
		}()
	}
	wg.Wait()
	completed := StatusCompleted
	tasks, _ := s.List(ctx, &completed)
	if len(tasks) != 50 {
		t.Fatalf("expected 50 completed tasks, got %d", len(tasks))
	}
}

func TestMemoryStore_UsesInjectedClockAndIDs(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return fixed }), WithIDGenerator(fixedIDs{"a", "b"}))
	task, err := s.Create(context.Background(), "screenshot", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.TaskID != "a" || !task.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected task: %#v", task)
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Failed "); err != nil || st != StatusFailed {
		t.Fatalf("unexpected parse: %v %v", st, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

type fixedIDs []string

func (f fixedIDs) NextID() string { return f[0] }
