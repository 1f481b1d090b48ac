package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// NewMemoryDSN names a fresh in-process database. Each call gets its own
// name, so two opens never share tables. Nothing survives a restart.
func NewMemoryDSN() string {
	return fmt.Sprintf("file:mashiro_%s?mode=memory&cache=shared", uuid.NewString())
}

// OpenSQLiteWithMigrations opens dsn and brings its schema up to date.
func OpenSQLiteWithMigrations(dsn string) (*gorm.DB, error) {
	gdb, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}
	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openSQLite(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = NewMemoryDSN()
	}
	if !isMemoryDSN(dsn) {
		if err := os.MkdirAll(filepath.Dir(filePathFromDSN(dsn)), 0o755); err != nil {
			return nil, err
		}
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps a memory database alive
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if !isMemoryDSN(dsn) {
		if err := gdb.Exec(`PRAGMA journal_mode=WAL;`).Error; err != nil {
			return nil, err
		}
	}
	if err := gdb.Exec(`PRAGMA busy_timeout=5000;`).Error; err != nil {
		return nil, err
	}
	return gdb, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func filePathFromDSN(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
