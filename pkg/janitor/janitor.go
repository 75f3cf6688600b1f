// Package janitor removes files in the managed data directory that no row
// references any more.
//
// Cascade deletes remove files before rows, so an interrupted delete can
// leave a file behind; a worker that finishes after its job was deleted can
// do the same. The janitor sweeps those orphans on a schedule.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/workbench-jobs/pkg/datadir"
	"github.com/jdziat/workbench-jobs/pkg/schedule"
)

// ReferenceSource reports every stored file_path.
type ReferenceSource interface {
	ReferencedFiles(ctx context.Context) (map[string]struct{}, error)
}

// Config controls a sweep.
type Config struct {
	// Schedule decides when Start runs a sweep. Required for Start.
	Schedule schedule.Schedule
	// GracePeriod protects files a worker may still be writing: only files
	// last modified before now-GracePeriod are removed.
	GracePeriod time.Duration
	// SkipDirs are directories (absolute or relative to the data directory)
	// that are never swept, such as the worker log directory.
	SkipDirs []string
	// SkipFiles are files that are never removed, such as the database.
	// The sqlite -wal, -shm and -journal siblings are skipped too.
	SkipFiles []string
	// DryRun reports orphans without removing them.
	DryRun bool
}

// Report summarizes one sweep.
type Report struct {
	Scanned   int       `json:"scanned"`
	Orphans   []string  `json:"orphans"`
	Removed   int       `json:"removed"`
	Failed    int       `json:"failed"`
	Bytes     int64     `json:"bytes"`
	StartedAt time.Time `json:"started_at"`
}

// Janitor sweeps the managed data directory.
type Janitor struct {
	refs   ReferenceSource
	dir    *datadir.Dir
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithLogger sets the janitor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(j *Janitor) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// New creates a Janitor.
func New(refs ReferenceSource, dir *datadir.Dir, cfg Config, opts ...Option) *Janitor {
	j := &Janitor{
		refs:   refs,
		dir:    dir,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs sweeps on the configured schedule until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if j.cfg.Schedule == nil {
		return errors.New("janitor: schedule is required")
	}
	for {
		next := j.cfg.Schedule.Next(j.now())
		wait := next.Sub(j.now())
		if wait < 0 {
			wait = 0
		}
		j.logger.Debug("next sweep scheduled", zap.Time("at", next))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := j.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			j.logger.Error("sweep failed", zap.Error(err))
		}
	}
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: j.now()}

	stored, err := j.refs.ReferencedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("janitor: load references: %w", err)
	}
	referenced := make(map[string]struct{}, len(stored))
	for p := range stored {
		rel, err := j.dir.Normalize(p)
		if err != nil {
			continue
		}
		referenced[rel] = struct{}{}
	}
	skipFiles := j.skipFiles()
	cutoff := report.StartedAt.Add(-j.cfg.GracePeriod)

	err = j.dir.Walk(j.relative(j.cfg.SkipDirs), func(f datadir.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++
		if _, ok := referenced[f.Rel]; ok {
			return nil
		}
		if _, ok := skipFiles[f.Rel]; ok {
			return nil
		}
		if f.Info.ModTime().After(cutoff) {
			return nil
		}

		report.Orphans = append(report.Orphans, f.Rel)
		if j.cfg.DryRun {
			return nil
		}
		removed, err := j.dir.Remove(f.Rel)
		if err != nil {
			report.Failed++
			j.logger.Warn("failed to remove orphan", zap.String("path", f.Rel), zap.Error(err))
			return nil
		}
		if removed {
			report.Removed++
			report.Bytes += f.Info.Size()
			j.logger.Debug("removed orphan", zap.String("path", f.Rel))
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("janitor: walk data directory: %w", err)
	}

	j.logger.Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
		zap.Int64("bytes", report.Bytes),
		zap.Bool("dry_run", j.cfg.DryRun),
	)
	return report, nil
}

func (j *Janitor) skipFiles() map[string]struct{} {
	var paths []string
	for _, p := range j.cfg.SkipFiles {
		if p == "" {
			continue
		}
		paths = append(paths, p, p+"-wal", p+"-shm", p+"-journal")
	}
	out := make(map[string]struct{}, len(paths))
	for _, rel := range j.relative(paths) {
		out[rel] = struct{}{}
	}
	return out
}

// relative converts paths to slash-separated paths relative to the data
// directory, dropping any that lie outside it.
func (j *Janitor) relative(paths []string) []string {
	root := j.dir.Root()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(p))
		}
		rel, err := filepath.Rel(root, filepath.Clean(p))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
