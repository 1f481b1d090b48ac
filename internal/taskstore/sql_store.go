package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbmodel "mashiro/cli/internal/db"
	"mashiro/cli/internal/dispatch"
)

// SQLStore keeps tasks in SQLite. Mutations run inside transactions on a
// single connection, so they never interleave.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Create(ctx context.Context, command string, params dispatch.Params) (Task, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Task{}, fmt.Errorf("command is required")
	}
	if params == nil {
		params = dispatch.Params{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return Task{}, fmt.Errorf("encode parameters: %w", err)
	}
	row := dbmodel.TaskRecord{
		// placeholder until the sequence is known; never visible outside the tx
		TaskID:         "tmp_" + uuid.NewString(),
		Command:        command,
		ParametersJSON: string(rawParams),
		Status:         string(StatusPending),
		CreatedAt:      s.now().UTC().UnixMilli(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		row.TaskID = FormatTaskID(uint64(row.Seq))
		return tx.Model(&dbmodel.TaskRecord{}).Where("seq = ?", row.Seq).Update("task_id", row.TaskID).Error
	})
	if err != nil {
		return Task{}, err
	}
	return rowToTask(row)
}

func (s *SQLStore) Start(ctx context.Context, taskID string) (Task, error) {
	return s.mutate(ctx, taskID, func(row *dbmodel.TaskRecord) error {
		if err := CheckTransition(Status(row.Status), StatusRunning); err != nil {
			return err
		}
		row.Status = string(StatusRunning)
		row.StartedAt = s.now().UTC().UnixMilli()
		return nil
	})
}

func (s *SQLStore) UpdateResult(ctx context.Context, taskID string, res dispatch.Result) (Task, error) {
	return s.mutate(ctx, taskID, func(row *dbmodel.TaskRecord) error {
		next := resultStatus(res)
		if err := CheckTransition(Status(row.Status), next); err != nil {
			return err
		}
		raw, err := json.Marshal(res.Normalize())
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		row.Status = string(next)
		row.ResultJSON = string(raw)
		row.FinishedAt = s.now().UTC().UnixMilli()
		return nil
	})
}

func (s *SQLStore) Cancel(ctx context.Context, taskID string) (Task, error) {
	return s.mutate(ctx, taskID, func(row *dbmodel.TaskRecord) error {
		if err := CheckTransition(Status(row.Status), StatusCancelled); err != nil {
			return err
		}
		row.Status = string(StatusCancelled)
		row.FinishedAt = s.now().UTC().UnixMilli()
		return nil
	})
}

func (s *SQLStore) Get(ctx context.Context, taskID string) (Task, error) {
	row, err := loadRow(s.db.WithContext(ctx), taskID)
	if err != nil {
		return Task{}, err
	}
	return rowToTask(row)
}

func (s *SQLStore) List(ctx context.Context, filter *Status) ([]Task, error) {
	q := s.db.WithContext(ctx).Model(&dbmodel.TaskRecord{}).Order("seq ASC")
	if filter != nil {
		q = q.Where("status = ?", string(*filter))
	}
	rows := make([]dbmodel.TaskRecord, 0)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTask(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLStore) mutate(ctx context.Context, taskID string, fn func(*dbmodel.TaskRecord) error) (Task, error) {
	var (
		row      dbmodel.TaskRecord
		rejected error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = loadRow(tx, taskID)
		if err != nil {
			return err
		}
		draft := row
		if err := fn(&draft); err != nil {
			rejected = err
			return nil
		}
		if err := tx.Save(&draft).Error; err != nil {
			return err
		}
		row = draft
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	task, convErr := rowToTask(row)
	if convErr != nil {
		return Task{}, convErr
	}
	if rejected != nil {
		return task, rejected
	}
	return task, nil
}

func loadRow(tx *gorm.DB, taskID string) (dbmodel.TaskRecord, error) {
	var row dbmodel.TaskRecord
	err := tx.Where("task_id = ?", taskID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dbmodel.TaskRecord{}, ErrTaskNotFound
	}
	if err != nil {
		return dbmodel.TaskRecord{}, err
	}
	return row, nil
}

func rowToTask(row dbmodel.TaskRecord) (Task, error) {
	params := dispatch.Params{}
	if strings.TrimSpace(row.ParametersJSON) != "" {
		if err := json.Unmarshal([]byte(row.ParametersJSON), &params); err != nil {
			return Task{}, fmt.Errorf("decode parameters of %s: %w", row.TaskID, err)
		}
	}
	t := Task{
		TaskID:     row.TaskID,
		Command:    row.Command,
		Parameters: params,
		Status:     Status(row.Status),
		CreatedAt:  time.UnixMilli(row.CreatedAt).UTC(),
		StartedAt:  millisPtr(row.StartedAt),
		FinishedAt: millisPtr(row.FinishedAt),
	}
	if strings.TrimSpace(row.ResultJSON) != "" {
		var res dispatch.Result
		if err := json.Unmarshal([]byte(row.ResultJSON), &res); err != nil {
			return Task{}, fmt.Errorf("decode result of %s: %w", row.TaskID, err)
		}
		t.Result = &res
	}
	return t, nil
}

func millisPtr(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	v := time.UnixMilli(ms).UTC()
	return &v
}
