package cmd

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/engine"
	"github.com/simon/mdrun/internal/logging"
	"github.com/simon/mdrun/internal/runner"
	"github.com/simon/mdrun/internal/terminal"
	"github.com/simon/mdrun/internal/tmux"
	"github.com/simon/mdrun/internal/tui"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// loadConfig reads --config (or the default path) and applies the flags that
// override config values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if f := cmd.Flags().Lookup("terminal"); f != nil && f.Changed {
		cfg.UseTerminal, _ = cmd.Flags().GetBool("terminal")
	}
	if f := cmd.Flags().Lookup("no-terminal"); f != nil && f.Changed {
		if off, _ := cmd.Flags().GetBool("no-terminal"); off {
			cfg.UseTerminal = false
		}
	}
	if f := cmd.Flags().Lookup("backend"); f != nil && f.Changed {
		cfg.Terminal.Backend, _ = cmd.Flags().GetString("backend")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// readDocument loads a markdown file; "-" reads stdin and yields a document
// without a path.
func readDocument(path string) (engine.Document, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return engine.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		return engine.Document{Text: string(data)}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Document{}, err
	}
	return engine.Document{Path: path, Text: string(data)}, nil
}

func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}

type app struct {
	engine *engine.Engine
	logger *zap.Logger
	output *tui.OutputBuffer // set for in-process backends in the viewer
}

// newApp wires the engine for cfg. In-process terminal output goes to
// termOut, or to a viewer buffer when viewer is set.
func newApp(cfg *config.Config, termOut io.Writer, viewer bool) (*app, error) {
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{logger: logger}
	if viewer && cfg.Terminal.Backend != config.BackendTmux {
		a.output = &tui.OutputBuffer{}
		termOut = a.output
	}
	if termOut == nil {
		termOut = os.Stdout
	}

	launcher, err := newLauncher(cfg, termOut)
	if err != nil {
		return nil, err
	}
	registry := terminal.NewRegistry(launcher, logger.Named("terminal"))
	r := runner.New(logger.Named("runner"))
	a.engine = engine.New(cfg, registry, r, logger.Named("engine"))
	return a, nil
}

func (a *app) Close() error {
	err := a.engine.Close()
	_ = a.logger.Sync()
	return err
}

func newLauncher(cfg *config.Config, out io.Writer) (terminal.Launcher, error) {
	switch cfg.Terminal.Backend {
	case config.BackendPTY:
		return &terminal.PTYLauncher{Output: out}, nil
	case config.BackendGosh:
		return &terminal.GoshLauncher{Output: out}, nil
	default:
		if cfg.UseTerminal {
			if _, err := tmux.FindTmux(); err != nil {
				return nil, fmt.Errorf("tmux not found (set terminal.backend or use --no-terminal): %w", err)
			}
		}
		return terminal.NewTmuxLauncher(tmux.NewLocalExecutor(), cfg.Terminal.PollInterval), nil
	}
}

// tmuxSessionFor returns the full tmux session name for a document terminal.
func tmuxSessionFor(ex tmux.Executor, path, name string) (string, error) {
	if name != "" && !validName.MatchString(name) {
		return "", fmt.Errorf("invalid name %q: use only alphanumeric, hyphens, underscores", name)
	}
	key := terminal.Key{Document: engine.DocumentKey(engine.Document{Path: path}), Name: name}
	return terminal.TmuxSessionName(ex, key), nil
}
