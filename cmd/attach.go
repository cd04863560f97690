package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/tmux"
)

var attachCmd = &cobra.Command{
	Use:   "attach <file>",
	Short: "Attach to the tmux session of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		exec := tmux.NewLocalExecutor()
		fullName, err := tmuxSessionFor(exec, args[0], name)
		if err != nil {
			return err
		}

		if !exec.HasSession(fullName) {
			return fmt.Errorf("no session for %s (terminal %q)", args[0], nameOrDefault(name))
		}
		return exec.AttachSession(fullName)
	},
}

func nameOrDefault(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

func init() {
	attachCmd.Flags().StringP("name", "n", "", "Terminal name (default \"default\")")
	rootCmd.AddCommand(attachCmd)
}
