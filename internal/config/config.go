// Package config loads application settings from a YAML file and
// WORKBENCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdziat/workbench-jobs/pkg/launcher"
)

// EnvPrefix prefixes every environment override, e.g. WORKBENCH_DATA_DIR.
const EnvPrefix = "WORKBENCH"

type Config struct {
	// DataDir is the managed data directory shared with workers.
	DataDir string `mapstructure:"data_dir"`

	Database struct {
		Driver          string        `mapstructure:"driver"` // "sqlite" or "postgres"
		Path            string        `mapstructure:"path"`   // sqlite file, defaults to <data_dir>/workbench.db
		DSN             string        `mapstructure:"dsn"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
		SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	} `mapstructure:"database"`

	Workers struct {
		Dir         string            `mapstructure:"dir"`
		Executables map[string]string `mapstructure:"executables"`
		LogDir      string            `mapstructure:"log_dir"` // defaults to <data_dir>/logs
	} `mapstructure:"workers"`

	Log struct {
		Mode  string `mapstructure:"mode"`
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`

	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Janitor struct {
		Enabled     bool          `mapstructure:"enabled"`
		Schedule    string        `mapstructure:"schedule"`
		GracePeriod time.Duration `mapstructure:"grace_period"`
		DryRun      bool          `mapstructure:"dry_run"`
	} `mapstructure:"janitor"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "0s")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.slow_threshold", "200ms")

	v.SetDefault("workers.dir", "workers")
	for kind, exe := range launcher.DefaultExecutables {
		v.SetDefault("workers.executables."+string(kind), exe)
	}
	v.SetDefault("workers.log_dir", "")

	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")

	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("janitor.enabled", false)
	v.SetDefault("janitor.schedule", "@every 1h")
	v.SetDefault("janitor.grace_period", "24h")
	v.SetDefault("janitor.dry_run", false)
}

// LoadConfig reads configuration. When path is empty, config.yaml is
// searched in the working directory and the user config directory; a
// missing file is not an error. Environment variables override the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "workbench"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDerived()
	return &cfg, nil
}

// applyDerived fills paths that default to locations inside DataDir.
func (c *Config) applyDerived() {
	if c.Database.Path == "" && c.DataDir != "" {
		c.Database.Path = filepath.Join(c.DataDir, "workbench.db")
	}
	if c.Workers.LogDir == "" && c.DataDir != "" {
		c.Workers.LogDir = filepath.Join(c.DataDir, "logs")
	}
}
