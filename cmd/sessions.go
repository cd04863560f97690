package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/session"
	"github.com/simon/mdrun/internal/tmux"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [file]",
	Short: "List running mdrun tmux sessions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := session.ListExecutor(tmux.NewLocalExecutor())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(args) == 1 {
			sessions = session.ForDocument(sessions, args[0])
		}

		w := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions.")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tTERMINAL\tSTATUS\tAGE\tATTACHED\tDIR")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.FullName, s.Terminal, s.Status, session.FormatDuration(s.Duration), s.AttachedCount, s.WorkDir)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
