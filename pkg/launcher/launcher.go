// Package launcher starts detached worker processes.
//
// A launch is fire-and-forget: the worker receives one self-contained JSON
// request, runs in its own session, and reports completion by writing job
// task rows to the shared database. The launcher keeps no handle to the
// process beyond logging its pid.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// Payload keys injected into every worker request.
const (
	KeyOutputPath   = "output_path"
	KeyDatabasePath = "database_path"
	KeyJobID        = "job_id"
)

// ParametersFlag is the single flag a worker accepts.
const ParametersFlag = "--parameters"

// DefaultExecutables maps each job kind to its worker executable name.
var DefaultExecutables = map[core.JobType]string{
	core.TypePreprocess: "normalize",
	core.TypeML:         "build_model",
	core.TypeResult:     "evaluate",
	core.TypeExport:     "export",
}

// Config describes where workers live and what they are told.
type Config struct {
	// Executables maps job kinds to executable paths. Relative entries are
	// joined to WorkerDir. Missing kinds fall back to DefaultExecutables.
	Executables map[core.JobType]string
	WorkerDir   string

	// DataDir is injected as output_path.
	DataDir string
	// DatabasePath is injected as database_path.
	DatabasePath string

	// LogDir receives <job_id>.log with each worker's stdout and stderr.
	// Output is discarded when empty.
	LogDir string
}

// Launcher implements core.Launcher.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
	start  func(*exec.Cmd) error
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the launcher's logger.
func WithLogger(l *zap.Logger) Option {
	return func(ln *Launcher) {
		if l != nil {
			ln.logger = l
		}
	}
}

// New creates a Launcher.
func New(cfg Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		logger: zap.NewNop(),
		start:  (*exec.Cmd).Start,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Executable resolves the worker executable path for kind.
func (l *Launcher) Executable(kind core.JobType) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidJobType, kind)
	}
	name := l.cfg.Executables[kind]
	if name == "" {
		name = DefaultExecutables[kind]
	}
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	if !filepath.IsAbs(name) && l.cfg.WorkerDir != "" {
		name = filepath.Join(l.cfg.WorkerDir, name)
	}
	return name, nil
}

// Request merges the injected paths into payload. Injected keys win over
// caller-supplied values. payload is not modified.
func (l *Launcher) Request(payload map[string]any) map[string]any {
	req := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		req[k] = v
	}
	req[KeyOutputPath] = l.cfg.DataDir
	req[KeyDatabasePath] = l.cfg.DatabasePath
	return req
}

// EncodeArgument serializes a request into the worker's single argument:
// the JSON text of the request, itself encoded as a JSON string.
func EncodeArgument(req map[string]any) (string, error) {
	inner, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("launcher: encode request: %w", err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return "", fmt.Errorf("launcher: encode argument: %w", err)
	}
	return string(outer), nil
}

// DecodeArgument reverses EncodeArgument. Workers written in Go use it to
// read their request.
func DecodeArgument(arg string) (map[string]any, error) {
	var inner string
	if err := json.Unmarshal([]byte(arg), &inner); err != nil {
		return nil, fmt.Errorf("launcher: decode argument: %w", err)
	}
	var req map[string]any
	if err := json.Unmarshal([]byte(inner), &req); err != nil {
		return nil, fmt.Errorf("launcher: decode request: %w", err)
	}
	return req, nil
}

// Command builds the worker invocation without starting it.
func (l *Launcher) Command(kind core.JobType, payload map[string]any) (*exec.Cmd, error) {
	exe, err := l.Executable(kind)
	if err != nil {
		return nil, err
	}
	arg, err := EncodeArgument(l.Request(payload))
	if err != nil {
		return nil, err
	}
	// Not CommandContext: the worker must outlive the caller's context.
	cmd := exec.Command(exe, ParametersFlag, arg)
	if l.cfg.WorkerDir != "" {
		cmd.Dir = l.cfg.WorkerDir
	}
	detach(cmd)
	return cmd, nil
}

// Launch starts the worker for kind and returns as soon as the OS accepted
// the process. Spawn errors are logged and reported as ok=false.
func (l *Launcher) Launch(ctx context.Context, kind core.JobType, payload map[string]any) (int, bool) {
	log := l.logger.With(zap.String("job_type", string(kind)))
	if id, ok := payload[KeyJobID].(string); ok {
		log = log.With(zap.String("job_id", id))
	}

	if err := ctx.Err(); err != nil {
		log.Warn("launch cancelled before start", zap.Error(err))
		return 0, false
	}

	cmd, err := l.Command(kind, payload)
	if err != nil {
		log.Error("failed to build worker command", zap.Error(err))
		return 0, false
	}

	out, err := l.openLog(kind, payload)
	if err != nil {
		log.Warn("worker log unavailable, discarding output", zap.Error(err))
		out = nil
	}
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := l.start(cmd); err != nil {
		if out != nil {
			_ = out.Close()
		}
		log.Error("failed to start worker", zap.String("path", cmd.Path), zap.Error(err))
		return 0, false
	}

	pid := cmd.Process.Pid
	log.Info("worker started", zap.Int("pid", pid), zap.String("path", cmd.Path))

	// Reap the child so it does not linger as a zombie while this process
	// lives. The exit status is deliberately discarded: the worker reports
	// its own outcome through the database.
	go func() {
		_ = cmd.Wait()
		if out != nil {
			_ = out.Close()
		}
	}()
	return pid, true
}

func (l *Launcher) openLog(kind core.JobType, payload map[string]any) (io.WriteCloser, error) {
	if l.cfg.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(l.cfg.LogDir, 0o755); err != nil {
		return nil, err
	}
	name, _ := payload[KeyJobID].(string)
	if name == "" || filepath.Base(name) != name {
		name = fmt.Sprintf("%s-%d", kind, time.Now().UnixNano())
	}
	return os.OpenFile(filepath.Join(l.cfg.LogDir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
