// Package app wires configuration into the running components.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"

	jobs "github.com/jdziat/workbench-jobs"
	"github.com/jdziat/workbench-jobs/internal/config"
	"github.com/jdziat/workbench-jobs/pkg/cascade"
	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/datadir"
	"github.com/jdziat/workbench-jobs/pkg/janitor"
	"github.com/jdziat/workbench-jobs/pkg/launcher"
	"github.com/jdziat/workbench-jobs/pkg/layout"
	"github.com/jdziat/workbench-jobs/pkg/schedule"
	"github.com/jdziat/workbench-jobs/pkg/storage"
)

// App holds the store handle and every component built on it. It is
// constructed once at startup and passed to the API and CLI.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Store    *storage.GormStorage
	Dir      *datadir.Dir
	Launcher *launcher.Launcher
	Layout   *layout.Reconciler
	Deleter  *cascade.Deleter
	Jobs     *jobs.Orchestrator
	Janitor  *janitor.Janitor
}

// New opens the store and builds the components described by cfg.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	dir, err := datadir.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath != "" {
		if dbPath, err = filepath.Abs(dbPath); err != nil {
			return nil, fmt.Errorf("app: resolve database path: %w", err)
		}
	}
	db, err := storage.Open(storage.OpenConfig{
		Driver:        cfg.Database.Driver,
		Path:          dbPath,
		DSN:           cfg.Database.DSN,
		BusyTimeout:   cfg.Database.BusyTimeout,
		SlowThreshold: cfg.Database.SlowThreshold,
		Logger:        log,
		Pool: []storage.PoolOption{
			storage.MaxOpenConns(cfg.Database.MaxOpenConns),
			storage.MaxIdleConns(cfg.Database.MaxIdleConns),
			storage.ConnMaxLifetime(cfg.Database.ConnMaxLifetime),
		},
	})
	if err != nil {
		return nil, err
	}

	logDir := cfg.Workers.LogDir
	if logDir != "" {
		if logDir, err = filepath.Abs(logDir); err != nil {
			_ = storage.Close(db)
			return nil, fmt.Errorf("app: resolve worker log dir: %w", err)
		}
	}
	workerDir, err := filepath.Abs(cfg.Workers.Dir)
	if err != nil {
		_ = storage.Close(db)
		return nil, fmt.Errorf("app: resolve worker dir: %w", err)
	}

	executables := make(map[core.JobType]string, len(cfg.Workers.Executables))
	for kind, exe := range cfg.Workers.Executables {
		executables[core.JobType(kind)] = exe
	}

	a := &App{Config: cfg, Logger: log, DB: db, Dir: dir}
	a.Store = storage.NewGormStorage(db, storage.WithLogger(log.Named("storage")))
	a.Launcher = launcher.New(launcher.Config{
		Executables:  executables,
		WorkerDir:    workerDir,
		DataDir:      dir.Root(),
		DatabasePath: dbPath,
		LogDir:       logDir,
	}, launcher.WithLogger(log.Named("launcher")))
	a.Layout = layout.New(db, layout.WithLogger(log.Named("layout")))
	a.Deleter = cascade.New(db, dir, cascade.WithLogger(log.Named("cascade")))
	a.Jobs = jobs.New(a.Store, a.Layout, a.Deleter,
		jobs.WithLogger(log.Named("jobs")),
		jobs.WithLauncher(a.Launcher),
	)

	janitorCfg := janitor.Config{
		GracePeriod: cfg.Janitor.GracePeriod,
		DryRun:      cfg.Janitor.DryRun,
		SkipFiles:   []string{dbPath},
		SkipDirs:    []string{logDir},
	}
	if cfg.Janitor.Enabled {
		if janitorCfg.Schedule, err = schedule.Parse(cfg.Janitor.Schedule); err != nil {
			_ = storage.Close(db)
			return nil, err
		}
	}
	a.Janitor = janitor.New(a.Store, dir, janitorCfg, janitor.WithLogger(log.Named("janitor")))

	return a, nil
}

// Migrate creates or updates the schema.
func (a *App) Migrate(ctx context.Context) error {
	return a.Store.Migrate(ctx)
}

// JanitorEnabled reports whether the scheduled sweep should run.
func (a *App) JanitorEnabled() bool {
	return a.Config.Janitor.Enabled
}

// Close releases the store handle and flushes the logger.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, storage.Close(a.DB))
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
