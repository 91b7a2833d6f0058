// Package repo bootstraps the SQLite database (pure Go driver) shared by
// the Data Store and the read services: connection setup, PRAGMAs, pool
// limits, and schema migration.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// OpenSQLite opens (or creates) the database file and applies PRAGMAs.
// A missing parent directory fails here with a clear error rather than as
// sqlite's "out of memory (14)".
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// WAL so the bot's writes don't starve ops API reads; busy_timeout
	// covers the remaining writer collisions.
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate applies the schema for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Supplier{},
		&domain.Location{},
		&domain.Product{},
		&domain.UsageRecord{},
		&domain.RequestToken{},
	)
}
