package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// LocalExecutor runs tmux commands on the local machine.
type LocalExecutor struct {
	runCmd CmdFunc
}

// NewLocalExecutor returns an executor that calls the real tmux binary.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{runCmd: exec.Command}
}

// NewLocalExecutorWithCmd returns an executor using fn to build commands.
func NewLocalExecutorWithCmd(fn CmdFunc) *LocalExecutor {
	return &LocalExecutor{runCmd: fn}
}

func (l *LocalExecutor) SessionPrefix() string { return SessionPrefix }

func (l *LocalExecutor) run(args ...string) (string, error) {
	out, err := l.runCmd("tmux", args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("tmux %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// ListSessions returns all mdrun-* tmux sessions.
func (l *LocalExecutor) ListSessions() ([]SessionInfo, error) {
	out, err := l.run("list-sessions", "-F", "#{session_name}|#{session_attached}|#{session_created}")
	if err != nil {
		// "no server running" or "no sessions" is not an error for us
		if strings.Contains(out, "no server running") || strings.Contains(out, "no sessions") {
			return nil, nil
		}
		return nil, err
	}
	return parseSessionList(out, SessionPrefix), nil
}

// CapturePaneOutput captures the last N lines from a tmux pane.
func (l *LocalExecutor) CapturePaneOutput(fullName string, lines int) (string, error) {
	return l.run("capture-pane", "-t", paneTarget(fullName), "-p", "-S", fmt.Sprintf("-%d", lines))
}

// NewSession creates a detached tmux session running the user's shell.
func (l *LocalExecutor) NewSession(fullName, workDir string) error {
	args := []string{"new-session", "-d", "-s", fullName}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	_, err := l.run(args...)
	return err
}

// SendKeys sends text followed by Enter. The text goes with -l so key names
// inside it are not interpreted, then Enter is sent separately to submit.
func (l *LocalExecutor) SendKeys(fullName, text string) error {
	if _, err := l.run("send-keys", "-t", paneTarget(fullName), "-l", text); err != nil {
		return err
	}
	_, err := l.run("send-keys", "-t", paneTarget(fullName), "Enter")
	return err
}

// KillSession sends Ctrl-C, waits briefly, then kills the session.
func (l *LocalExecutor) KillSession(fullName string) error {
	_, _ = l.run("send-keys", "-t", paneTarget(fullName), "C-c", "")
	time.Sleep(200 * time.Millisecond)
	_, err := l.run("kill-session", "-t", sessionTarget(fullName))
	return err
}

func (l *LocalExecutor) HasSession(fullName string) bool {
	return l.runCmd("tmux", "has-session", "-t", sessionTarget(fullName)).Run() == nil
}

// GetPanePath returns the current working directory of a session's active pane.
func (l *LocalExecutor) GetPanePath(fullName string) string {
	out, err := l.run("display-message", "-t", paneTarget(fullName), "-p", "#{pane_current_path}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// AttachSession runs tmux attach as a child process (returns on detach).
func (l *LocalExecutor) AttachSession(fullName string) error {
	cmd := l.runCmd("tmux", "attach-session", "-t", sessionTarget(fullName))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filterTMUX(os.Environ())
	return cmd.Run()
}

// parseSessionList parses tmux list-sessions output into SessionInfo structs.
func parseSessionList(output, prefix string) []SessionInfo {
	var sessions []SessionInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		fullName := parts[0]
		if !strings.HasPrefix(fullName, prefix) {
			continue
		}

		attached, _ := strconv.Atoi(parts[1])
		createdUnix, _ := strconv.ParseInt(parts[2], 10, 64)

		sessions = append(sessions, SessionInfo{
			Name:          strings.TrimPrefix(fullName, prefix),
			FullName:      fullName,
			AttachedCount: attached,
			Created:       time.Unix(createdUnix, 0),
		})
	}
	return sessions
}

var _ Executor = (*LocalExecutor)(nil)
