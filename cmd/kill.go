package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simon/mdrun/internal/tmux"
)

var killCmd = &cobra.Command{
	Use:   "kill <file>",
	Short: "Kill the tmux session of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		exec := tmux.NewLocalExecutor()
		fullName, err := tmuxSessionFor(exec, args[0], name)
		if err != nil {
			return err
		}
		label := fmt.Sprintf("%s (terminal %q)", args[0], nameOrDefault(name))

		if !exec.HasSession(fullName) {
			return fmt.Errorf("no session for %s", label)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Kill session %s? [y/N] ", label)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := exec.KillSession(fullName); err != nil {
			return fmt.Errorf("failed to kill session: %w", err)
		}

		fmt.Printf("Killed session %s\n", label)
		return nil
	},
}

func init() {
	killCmd.Flags().StringP("name", "n", "", "Terminal name (default \"default\")")
	killCmd.Flags().BoolP("force", "f", false, "Skip confirmation")
	rootCmd.AddCommand(killCmd)
}
