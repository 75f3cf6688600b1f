package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections in the idle pool.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Default: 1 minute
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns defaults for a server database shared by the
// application and its workers.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// SQLitePoolConfig returns defaults for a local sqlite file. Sqlite allows a
// single writer, so a small pool keeps lock waits inside busy_timeout.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 0,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns sets the maximum number of open connections.
// Values below 1 are ignored.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n > 0 {
			c.MaxOpenConns = n
		}
	})
}

// MaxIdleConns sets the maximum number of idle connections.
// Values below 1 are ignored.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n > 0 {
			c.MaxIdleConns = n
		}
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
// Values below zero are ignored.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if d >= 0 {
			c.ConnMaxLifetime = d
		}
	})
}

// ConfigurePool applies pool configuration on top of base to a GORM handle.
// Returns an error if the underlying *sql.DB cannot be retrieved.
func ConfigurePool(db *gorm.DB, base PoolConfig, opts ...PoolOption) (PoolConfig, error) {
	config := base
	for _, opt := range opts {
		opt.applyPool(&config)
	}
	if config.MaxIdleConns > config.MaxOpenConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	sqlDB, err := db.DB()
	if err != nil {
		return config, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return config, nil
}
