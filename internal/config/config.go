package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/simon/mdrun/internal/block"
)

// Terminal backends.
const (
	BackendTmux = "tmux"
	BackendPTY  = "pty"
	BackendGosh = "gosh"
)

type TerminalConfig struct {
	Backend      string        `yaml:"backend" envconfig:"BACKEND"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
}

type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

type Config struct {
	EnabledLanguages []string       `yaml:"enabled_languages" envconfig:"ENABLED_LANGUAGES"`
	UseTerminal      bool           `yaml:"use_terminal" envconfig:"USE_TERMINAL"`
	EnableCodeLens   bool           `yaml:"enable_code_lens" envconfig:"ENABLE_CODE_LENS"`
	UseResultView    bool           `yaml:"use_result_view" envconfig:"USE_RESULT_VIEW"`
	WorkspaceRoot    string         `yaml:"workspace_root" envconfig:"WORKSPACE_ROOT"`
	Terminal         TerminalConfig `yaml:"terminal" envconfig:"TERMINAL"`
	Log              LogConfig      `yaml:"log" envconfig:"LOG"`
}

// Default returns the configuration used when no file or env override exists.
func Default() *Config {
	langs := make([]string, len(block.Languages))
	for i, l := range block.Languages {
		langs[i] = string(l)
	}
	return &Config{
		EnabledLanguages: langs,
		UseTerminal:      true,
		EnableCodeLens:   true,
		UseResultView:    true,
		Terminal: TerminalConfig{
			Backend:      BackendTmux,
			PollInterval: time.Second,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Path returns ~/.config/mdrun/config.yaml.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mdrun", "config.yaml")
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path over the defaults, then applies MDRUN_* environment
// overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := envconfig.Process("mdrun", cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown languages and terminal backends.
func (c *Config) Validate() error {
	for _, l := range c.EnabledLanguages {
		if !block.Language(l).Recognized() {
			return fmt.Errorf("enabled_languages: unknown language %q", l)
		}
	}
	switch c.Terminal.Backend {
	case BackendTmux, BackendPTY, BackendGosh:
	default:
		return fmt.Errorf("terminal.backend: unknown backend %q", c.Terminal.Backend)
	}
	if c.Terminal.PollInterval <= 0 {
		c.Terminal.PollInterval = time.Second
	}
	return nil
}

// Languages returns the enabled languages as block tags.
func (c *Config) Languages() []block.Language {
	out := make([]block.Language, len(c.EnabledLanguages))
	for i, l := range c.EnabledLanguages {
		out[i] = block.Language(l)
	}
	return out
}
