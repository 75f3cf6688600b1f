package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenConfig describes how to reach the relational store.
type OpenConfig struct {
	Driver string
	// Path is the sqlite database file. Workers receive it as database_path.
	Path string
	// DSN is the postgres connection string.
	DSN string

	BusyTimeout   time.Duration
	SlowThreshold time.Duration
	Logger        *zap.Logger
	Pool          []PoolOption
}

// SQLiteDSN builds a go-sqlite3 DSN with WAL and a busy timeout so the
// application and worker processes can share the file.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on", path, busyTimeout.Milliseconds())
}

// Open connects to the configured store and applies pool settings.
func Open(cfg OpenConfig) (*gorm.DB, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	gcfg := &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db   *gorm.DB
		err  error
		base PoolConfig
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create database directory: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.Path, cfg.BusyTimeout)), gcfg)
		base = SQLitePoolConfig()
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage: postgres dsn is required")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		base = DefaultPoolConfig()
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Driver, err)
	}

	if _, err := ConfigurePool(db, base, cfg.Pool...); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
