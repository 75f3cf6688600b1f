package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/schedule"
)

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database connection limits must not be negative")
	}

	for kind, exe := range c.Workers.Executables {
		if !core.JobType(kind).Valid() {
			return fmt.Errorf("workers.executables has unknown job type %q", kind)
		}
		if strings.TrimSpace(exe) == "" {
			return fmt.Errorf("workers.executables.%s must not be empty", kind)
		}
	}
	for _, kind := range core.JobTypes {
		if _, ok := c.Workers.Executables[string(kind)]; !ok {
			return fmt.Errorf("workers.executables.%s is required", kind)
		}
	}

	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("log.mode must be development or production, got %q", c.Log.Mode)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if c.Janitor.Enabled {
		if _, err := schedule.Parse(c.Janitor.Schedule); err != nil {
			return fmt.Errorf("janitor.schedule: %w", err)
		}
	}
	if c.Janitor.GracePeriod < 0 {
		return errors.New("janitor.grace_period must not be negative")
	}
	return nil
}
