package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/engine"
	"github.com/simon/mdrun/internal/tui"
)

var listCmd = &cobra.Command{
	Use:   "list <file|->",
	Short: "List the runnable code blocks of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		return printBlocks(cmd.OutOrStdout(), cfg, doc)
	},
}

// printBlocks writes one row per runnable block. It needs no terminal
// backend, so the engine is built without one.
func printBlocks(w io.Writer, cfg *config.Config, doc engine.Document) error {
	blocks := engine.New(cfg, nil, nil, nil).Blocks(doc)
	if len(blocks) == 0 {
		fmt.Fprintln(w, "No runnable code blocks.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tLANG\tTERMINAL\tCODE")
	for _, b := range blocks {
		term := b.Terminal
		if term == "" {
			term = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.Line+1, b.Language, term, tui.Summary(b.Code, 60))
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(listCmd)
}
