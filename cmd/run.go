package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/present"
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run the code block at a position",
	Long: `Run the code block containing a cursor position. --line and --col are
1-based like an editor's status bar; --offset is a 0-based byte offset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		offset, err := cursorOffset(cmd, doc.Text)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		a, err := newApp(cfg, out, false)
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, runErr := a.engine.RunAt(context.Background(), doc, offset)
		present.NewPrinter(out, isInteractive()).Outcome(outcome, runErr)
		if runErr != nil {
			return errReported
		}

		if outcome.Session != nil && cfg.Terminal.Backend != config.BackendTmux {
			// In-process terminals end with mdrun; give them a moment to
			// print before closing.
			settle, _ := cmd.Flags().GetDuration("settle")
			time.Sleep(settle)
		}
		if outcome.Result != nil && !outcome.Result.Succeeded {
			return errReported
		}
		return nil
	},
}

// cursorOffset converts the position flags into a byte offset.
func cursorOffset(cmd *cobra.Command, text string) (int, error) {
	flags := cmd.Flags()
	if flags.Changed("offset") {
		if flags.Changed("line") || flags.Changed("col") {
			return 0, fmt.Errorf("--offset and --line/--col are mutually exclusive")
		}
		offset, _ := flags.GetInt("offset")
		if offset < 0 {
			return 0, fmt.Errorf("invalid offset %d", offset)
		}
		return offset, nil
	}
	if !flags.Changed("line") {
		return 0, fmt.Errorf("specify --line or --offset")
	}
	line, _ := flags.GetInt("line")
	col, _ := flags.GetInt("col")
	if line < 1 || col < 1 {
		return 0, fmt.Errorf("--line and --col start at 1")
	}
	return block.OffsetAt(text, line-1, col-1), nil
}

func addRunFlags(c *cobra.Command) {
	c.Flags().Int("line", 0, "Line of the cursor (1-based)")
	c.Flags().Int("col", 1, "Column of the cursor (1-based)")
	c.Flags().Int("offset", 0, "Byte offset of the cursor (0-based)")
	c.Flags().Bool("terminal", false, "Send shell blocks to a terminal session")
	c.Flags().Bool("no-terminal", false, "Capture shell blocks instead of using a terminal")
	c.Flags().String("backend", "", "Terminal backend: tmux, pty or gosh")
	c.Flags().Duration("settle", 500*time.Millisecond, "How long in-process terminals may print before mdrun exits")
	c.MarkFlagsMutuallyExclusive("terminal", "no-terminal")
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
