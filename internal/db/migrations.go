package db

import (
	"errors"

	"mashiro/cli/internal/db/migration"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&TaskRecord{},
		&CommandUsage{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_seq ON tasks(status, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_command_usage_last_used ON command_usage(last_used_at DESC);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp brings the schema up to date. It never touches task rows, so it
// is safe against a database a running server owns.
func MigrateUp(db *gorm.DB) error {
	return SyncSchema(db)
}

// PrepareForServe runs the startup migrations of a server that is about to
// own db, returning their log lines.
func PrepareForServe(db *gorm.DB) ([]string, error) {
	return migration.RunStartup(db)
}
