// Package route decides how a block runs: captured through a child process
// or sent to a named terminal session, and in which working directory.
package route

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/terminal"
)

// ErrLanguageNotEnabled is returned for blocks whose language is switched off
// in the configuration.
var ErrLanguageNotEnabled = errors.New("language not enabled")

type Mode int

const (
	Captured Mode = iota
	Terminal
)

func (m Mode) String() string {
	switch m {
	case Captured:
		return "captured"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options are the routing preferences in effect for one run.
type Options struct {
	EnabledLanguages []block.Language
	UseTerminal      bool
	DocumentPath     string // empty for documents without an on-disk path
	WorkspaceRoot    string
}

// Decision is where and how a block runs. Key is only meaningful in Terminal
// mode.
type Decision struct {
	Mode        Mode
	Interpreter bool
	Key         terminal.Key
	WorkDir     string
}

// Route applies the routing rules to b. Scripting languages always run
// captured through the interpreter; shell blocks go to a terminal when
// opts.UseTerminal is set.
func Route(b block.Block, opts Options) (Decision, error) {
	if !enabled(b.Language, opts.EnabledLanguages) {
		return Decision{}, fmt.Errorf("%w: %s", ErrLanguageNotEnabled, b.Language)
	}

	d := Decision{WorkDir: WorkDirFor(opts.DocumentPath, opts.WorkspaceRoot)}
	switch {
	case b.Language.Scripting():
		d.Mode = Captured
		d.Interpreter = true
	case opts.UseTerminal:
		d.Mode = Terminal
		d.Key = terminal.Key{Document: opts.DocumentPath, Name: b.Terminal}.Normalize()
	default:
		d.Mode = Captured
	}
	return d, nil
}

func enabled(lang block.Language, langs []block.Language) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// WorkDirFor returns the directory containing documentPath, falling back to
// workspaceRoot and then the process working directory.
func WorkDirFor(documentPath, workspaceRoot string) string {
	if documentPath != "" {
		if abs, err := filepath.Abs(documentPath); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(documentPath)
	}
	if workspaceRoot != "" {
		return workspaceRoot
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
