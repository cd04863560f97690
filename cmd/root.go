package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/tmux"
	"github.com/simon/mdrun/internal/tui"
)

var configPath string

func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

var rootCmd = &cobra.Command{
	Use:   "mdrun [file]",
	Short: "Run fenced shell and python blocks from markdown documents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		if !cfg.UseResultView || !isInteractive() {
			return printBlocks(cmd.OutOrStdout(), cfg, doc)
		}

		for {
			app, err := newApp(cfg, nil, true)
			if err != nil {
				return err
			}

			m := tui.NewModel(app.engine, doc, true, app.output)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

			finalModel, err := p.Run()
			closeErr := app.Close()
			if err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			if closeErr != nil {
				app.logger.Warn("closing sessions failed", zap.Error(closeErr))
			}

			final := finalModel.(tui.Model)
			if final.AttachTarget == "" {
				break
			}

			// Attach as child process; returns when user detaches
			_ = tmux.NewLocalExecutor().AttachSession(final.AttachTarget)
			// Loop restarts TUI, adopting the tmux sessions again
			if doc.Path != "" {
				if doc, err = readDocument(args[0]); err != nil {
					return err
				}
			}
		}

		return nil
	},
}

// errReported marks failures whose details were already printed.
var errReported = errors.New("reported")

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
