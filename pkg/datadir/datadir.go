// Package datadir manages the application-owned data directory shared with
// worker processes.
package datadir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdziat/workbench-jobs/pkg/security"
)

// Dir is the managed data directory. Every file_path column is resolved
// relative to it.
type Dir struct {
	root string
}

// Open ensures root exists and returns a Dir for it.
func Open(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("datadir: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("datadir: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("datadir: create root: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}

// Resolve returns the absolute path for a stored file_path, refusing paths
// that escape the directory.
func (d *Dir) Resolve(rel string) (string, error) {
	return security.ResolveManagedPath(d.root, rel)
}

// Remove deletes the file a stored file_path refers to. A file that no
// longer exists is already satisfied: removed is false and err is nil.
func (d *Dir) Remove(rel string) (removed bool, err error) {
	path, err := d.Resolve(rel)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Normalize returns the slash-separated path of a stored file_path relative
// to the directory, so paths written by different clients compare equal.
func (d *Dir) Normalize(stored string) (string, error) {
	path, err := d.Resolve(stored)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// File is a regular file found by Walk.
type File struct {
	Rel  string
	Info fs.FileInfo
}

// Walk visits every regular file below the directory, skipping any
// directory whose slash-separated relative path is listed in skipDirs.
func (d *Dir) Walk(skipDirs []string, fn func(File) error) error {
	skip := make(map[string]struct{}, len(skipDirs))
	for _, s := range skipDirs {
		skip[strings.Trim(filepath.ToSlash(s), "/")] = struct{}{}
	}
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if _, ok := skip[rel]; ok && rel != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return fn(File{Rel: rel, Info: info})
	})
}
