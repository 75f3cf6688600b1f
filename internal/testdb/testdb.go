// Package testdb opens migrated databases for tests.
package testdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// Open returns a migrated database for a test.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh SQLite file under t.TempDir(). A file is used instead of
// :memory: because every pooled connection to :memory: sees its own empty
// database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		require.NoError(t, err, "open postgres test db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(1)

		require.NoError(t, db.AutoMigrate(core.Models()...), "migrate schema")
		// Clean before AND after to ensure test isolation.
		Truncate(t, db)
		t.Cleanup(func() {
			Truncate(t, db)
			_ = sqlDB.Close()
		})
		return db
	}

	path := filepath.Join(t.TempDir(), "workbench.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), cfg)
	require.NoError(t, err, "open sqlite test db")
	require.NoError(t, db.AutoMigrate(core.Models()...), "migrate schema")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Truncate deletes all rows from every table.
func Truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	tables := []string{
		"result_views", "result_sheets", "workbooks",
		"job_results", "job_tasks", "jobs",
		"model_files", "normalized_data_sets", "raw_data_sets",
	}
	for _, tbl := range tables {
		db.Exec("DELETE FROM " + tbl)
	}
}
