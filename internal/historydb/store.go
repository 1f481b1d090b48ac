package historydb

import (
	"context"
	"errors"
	"strings"
	"time"

	dbmodel "mashiro/cli/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry summarizes how often a command has been run.
type Entry struct {
	Command     string    `json:"command"`
	Total       int64     `json:"total"`
	Succeeded   int64     `json:"succeeded"`
	Failed      int64     `json:"failed"`
	FirstUsedAt time.Time `json:"first_used_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore uses the shared DB. Caller must not close the db.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record counts one finished invocation of command.
func (s *Store) Record(ctx context.Context, command string, success bool) error {
	if s == nil || s.db == nil {
		return errors.New("usage store is not initialized")
	}
	name := strings.TrimSpace(command)
	if name == "" {
		return errors.New("command is required")
	}
	now := s.now().UTC().UnixMilli()
	var ok, failed int64
	if success {
		ok = 1
	} else {
		failed = 1
	}
	row := dbmodel.CommandUsage{
		Command:     name,
		Total:       1,
		Succeeded:   ok,
		Failed:      failed,
		FirstUsedAt: now,
		LastUsedAt:  now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "command"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_used_at": now,
			"total":        gorm.Expr("command_usage.total + 1"),
			"succeeded":    gorm.Expr("command_usage.succeeded + ?", ok),
			"failed":       gorm.Expr("command_usage.failed + ?", failed),
		}),
	}).Create(&row).Error
}

// List returns usage ordered by most recent use.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("usage store is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows := make([]dbmodel.CommandUsage, 0, limit)
	if err := s.db.WithContext(ctx).Order("last_used_at DESC").Order("command ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Command:     row.Command,
			Total:       row.Total,
			Succeeded:   row.Succeeded,
			Failed:      row.Failed,
			FirstUsedAt: time.UnixMilli(row.FirstUsedAt).UTC(),
			LastUsedAt:  time.UnixMilli(row.LastUsedAt).UTC(),
		})
	}
	return entries, nil
}

// Clear drops all usage rows.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("usage store is not initialized")
	}
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&dbmodel.CommandUsage{}).Error
}
