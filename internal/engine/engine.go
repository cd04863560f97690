// Package engine ties block extraction, routing, the terminal registry and
// the process runner together. The command line and the viewer drive mdrun
// only through an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/route"
	"github.com/simon/mdrun/internal/runner"
	"github.com/simon/mdrun/internal/terminal"
)

// ErrNoBlockAtPosition is returned when no runnable block contains the
// requested offset.
var ErrNoBlockAtPosition = errors.New("no runnable code block at cursor position")

// Document is a markdown text and the path it was read from. Path is empty
// for documents without an on-disk location, such as stdin.
type Document struct {
	Path string
	Text string
}

// Outcome reports one dispatched block. Result is set for captured runs,
// Session for terminal runs.
type Outcome struct {
	Block    block.Block
	Decision route.Decision
	Result   *runner.Result
	Session  *terminal.Session
}

type Engine struct {
	cfg      *config.Config
	registry *terminal.Registry
	runner   *runner.Runner
	logger   *zap.Logger
}

func New(cfg *config.Config, registry *terminal.Registry, r *runner.Runner, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, registry: registry, runner: r, logger: logger}
}

// Config returns the configuration the engine routes with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Registry returns the terminal session registry owned by the engine.
func (e *Engine) Registry() *terminal.Registry { return e.registry }

// Blocks returns the runnable blocks of doc, or nothing when run affordances
// are disabled.
func (e *Engine) Blocks(doc Document) []block.Block {
	if !e.cfg.EnableCodeLens {
		return nil
	}
	enabled := make(map[block.Language]bool)
	for _, l := range e.cfg.Languages() {
		enabled[l] = true
	}

	var out []block.Block
	for _, b := range block.FindAll(doc.Text) {
		if enabled[b.Language] {
			out = append(out, b)
		}
	}
	return out
}

// RunAt runs the block containing offset.
func (e *Engine) RunAt(ctx context.Context, doc Document, offset int) (*Outcome, error) {
	b, ok := block.FindAt(doc.Text, offset)
	if !ok {
		return nil, ErrNoBlockAtPosition
	}
	return e.Run(ctx, doc, b)
}

// Run routes b and dispatches it. A non-zero exit is reported in the
// Outcome's Result, not as an error. On any other failure the returned
// Outcome still carries the block and working directory.
func (e *Engine) Run(ctx context.Context, doc Document, b block.Block) (*Outcome, error) {
	docPath := absPath(doc.Path)
	d, err := route.Route(b, route.Options{
		EnabledLanguages: e.cfg.Languages(),
		UseTerminal:      e.cfg.UseTerminal,
		DocumentPath:     docPath,
		WorkspaceRoot:    e.cfg.WorkspaceRoot,
	})
	if err != nil {
		d.WorkDir = route.WorkDirFor(docPath, e.cfg.WorkspaceRoot)
		return &Outcome{Block: b, Decision: d}, err
	}
	out := &Outcome{Block: b, Decision: d}

	e.logger.Debug("running block",
		zap.String("document", docPath),
		zap.Int("line", b.Line),
		zap.String("language", string(b.Language)),
		zap.Stringer("mode", d.Mode),
		zap.String("workdir", d.WorkDir))

	if d.Mode == route.Terminal {
		s, err := e.registry.Acquire(ctx, d.Key, d.WorkDir)
		if err != nil {
			return out, err
		}
		if err := e.registry.Send(s, b.Code); err != nil {
			return out, err
		}
		out.Session = s
		return out, nil
	}

	res, err := e.runner.Run(ctx, runner.Request{
		Code:        b.Code,
		Interpreter: d.Interpreter,
		WorkDir:     d.WorkDir,
	})
	if err != nil {
		var spawnErr *runner.SpawnError
		if errors.As(err, &spawnErr) {
			e.logger.Warn("spawn failed", zap.String("path", spawnErr.Path), zap.Error(spawnErr.Err))
		}
		return out, err
	}
	out.Result = res
	return out, nil
}

// DocumentKey returns the document identity used in terminal session keys.
func DocumentKey(doc Document) string { return absPath(doc.Path) }

// CloseSession ends the terminal session of doc named name, if one is live.
// tmux sessions are killed rather than detached.
func (e *Engine) CloseSession(doc Document, name string) (bool, error) {
	s, ok := e.registry.Lookup(terminal.Key{Document: absPath(doc.Path), Name: name})
	if !ok {
		return false, nil
	}
	e.registry.Release(s)
	closeFn := s.Terminal.Close
	if k, ok := s.Terminal.(terminal.Killer); ok {
		closeFn = k.Kill
	}
	if err := closeFn(); err != nil {
		return true, fmt.Errorf("close %s: %w", s.DisplayName, err)
	}
	return true, nil
}

// Close releases every terminal session.
func (e *Engine) Close() error {
	return e.registry.Close()
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
