package migration

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type step struct {
	name string
	run  func(*Migration) error
}

// startupSteps run once when a server takes ownership of the database. They
// are not part of `migrate up`, which may target a database a live server is
// still using.
var startupSteps = []step{
	{name: "fail-interrupted-tasks", run: failInterruptedTasks},
}

// Migration is passed to each migration step. DB is set by RunStartup.
type Migration struct {
	DB   *gorm.DB
	logs []string
}

func (m *Migration) Log(v ...interface{}) {
	m.logs = append(m.logs, fmt.Sprint(v...))
}

// RunStartup runs the startup steps in order and returns what they logged.
func RunStartup(db *gorm.DB) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	ctx := &Migration{DB: db}
	for _, s := range startupSteps {
		if err := s.run(ctx); err != nil {
			return ctx.logs, fmt.Errorf("migration %s failed: %w", s.name, err)
		}
	}
	return ctx.logs, nil
}

// failInterruptedTasks closes out tasks a previous process left pending or
// running. The execution queue lives in memory, so nothing would pick them up.
func failInterruptedTasks(m *Migration) error {
	res := `{"success":false,"action":"task_interrupted","error":"task interrupted by restart"}`
	tx := m.DB.Exec(
		`UPDATE tasks SET status = 'failed', result_json = ?, finished_at = ? WHERE status IN ('pending', 'running')`,
		res, time.Now().UTC().UnixMilli(),
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		m.Log("failed interrupted tasks: ", tx.RowsAffected)
	}
	return nil
}
