package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the SQL snapshot store. driver is "sqlite" (a file on the
// terminal, pure-Go driver) or "postgres" (a shared database). The only table
// is pos_snapshot_entries, created by AutoMigrate.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(driver)
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "pos-terminal.db"
		}
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create data dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One writer; SQLite serializes writes anyway.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetMaxIdleConns(2)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the snapshot table.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.SnapshotEntry{}); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return nil
}
