package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/terminal"
	"github.com/simon/mdrun/internal/tmux"
)

var sendCmd = &cobra.Command{
	Use:   "send <file> <text...>",
	Short: "Send a command line to a document's tmux session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		text := strings.Join(args[1:], " ")
		exec := tmux.NewLocalExecutor()
		fullName, err := tmuxSessionFor(exec, args[0], name)
		if err != nil {
			return err
		}

		if !exec.HasSession(fullName) {
			return fmt.Errorf("no session for %s (terminal %q)", args[0], nameOrDefault(name))
		}

		if err := exec.SendKeys(fullName, terminal.EscapeHistory(text)); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		fmt.Printf("Sent to %s: %s\n", fullName, text)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringP("name", "n", "", "Terminal name (default \"default\")")
	rootCmd.AddCommand(sendCmd)
}
