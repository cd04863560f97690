// Package runner executes a block as a one-shot child process and captures
// its output.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"go.uber.org/zap"
)

// outputGrace bounds how long Wait keeps copying output after the process
// has exited, e.g. when a background child still holds the pipes open.
const outputGrace = 500 * time.Millisecond

// Request describes one captured run.
type Request struct {
	Code        string
	Interpreter bool // write Code to a script and run it with the interpreter
	WorkDir     string
}

// Runner spawns captured runs. It holds no per-run state, so Run may be called
// again with identical arguments and yields an independent Result.
type Runner struct {
	shell       []string
	interpreter string
	tempDir     string
	fs          afs.Service
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*Runner)

// WithShell replaces the platform shell; the code is appended as the last argument.
func WithShell(name string, args ...string) Option {
	return func(r *Runner) { r.shell = append([]string{name}, args...) }
}

// WithInterpreter replaces the platform script interpreter.
func WithInterpreter(path string) Option {
	return func(r *Runner) { r.interpreter = path }
}

// WithTempDir sets where interpreter scripts are written.
func WithTempDir(dir string) Option {
	return func(r *Runner) { r.tempDir = dir }
}

func New(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		shell:       defaultShell(),
		interpreter: defaultInterpreter(),
		tempDir:     os.TempDir(),
		fs:          afs.New(),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd.exe", "/c"}
	}
	return []string{"/bin/sh", "-c"}
}

func defaultInterpreter() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Run executes req and blocks until the process exits. A non-zero exit is
// reported in the Result; only spawn failures and I/O errors are returned.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Interpreter {
		return r.runScript(ctx, req)
	}
	args := append(append([]string(nil), r.shell[1:]...), req.Code)
	return r.spawn(ctx, req.WorkDir, r.shell[0], args...)
}

// runScript writes the code to a uniquely named temp file and always removes
// it once the interpreter is done, whatever the outcome.
func (r *Runner) runScript(ctx context.Context, req Request) (*Result, error) {
	path := r.scriptPath()
	if err := r.fs.Upload(ctx, path, file.DefaultFileOsMode, strings.NewReader(req.Code)); err != nil {
		return nil, fmt.Errorf("write script %s: %w", path, err)
	}
	defer r.removeScript(context.WithoutCancel(ctx), path)

	return r.spawn(ctx, req.WorkDir, r.interpreter, path)
}

func (r *Runner) scriptPath() string {
	name := fmt.Sprintf("mdrun-%d-%s.py", r.now().UnixNano(), uuid.NewString()[:8])
	return filepath.Join(r.tempDir, name)
}

func (r *Runner) removeScript(ctx context.Context, path string) {
	if err := r.fs.Delete(ctx, path); err != nil {
		r.logger.Warn("failed to remove temporary script", zap.String("path", path), zap.Error(err))
	}
}

func (r *Runner) spawn(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	var stdout, stderr accumulator

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = outputGrace

	started := r.now()
	if err := cmd.Start(); err != nil {
		r.logger.Warn("spawn failed", zap.String("path", name), zap.String("dir", dir), zap.Error(err))
		return nil, &SpawnError{Path: name, Err: err}
	}
	r.logger.Debug("process started", zap.String("path", name), zap.Int("pid", cmd.Process.Pid))

	waitErr := cmd.Wait()
	res := &Result{
		Stdout:   stdout.String(),
		Duration: r.now().Sub(started),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.Is(waitErr, exec.ErrWaitDelay):
		res.ExitCode = cmd.ProcessState.ExitCode()
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("wait for %s: %w", name, waitErr)
	}

	res.Succeeded = res.ExitCode == 0
	if !res.Succeeded {
		res.Stderr = stderr.String()
	}
	r.logger.Debug("process exited", zap.String("path", name), zap.Int("exit_code", res.ExitCode))
	return res, nil
}

// accumulator collects one stream's chunks in arrival order.
type accumulator struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (a *accumulator) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Write(p)
}

func (a *accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}
