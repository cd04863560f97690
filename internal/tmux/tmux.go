// Package tmux wraps the tmux binary for mdrun's persistent terminal sessions.
package tmux

import (
	"crypto/sha1"
	"encoding/hex"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const SessionPrefix = "mdrun-"

type SessionInfo struct {
	Name          string // without the mdrun- prefix
	FullName      string
	AttachedCount int
	Created       time.Time
}

// CmdFunc builds a command; it matches exec.Command.
type CmdFunc func(name string, args ...string) *exec.Cmd

// FindTmux locates the tmux binary.
func FindTmux() (string, error) {
	return exec.LookPath("tmux")
}

// SessionName returns the tmux session name (without prefix) for a document
// and terminal name. The document path is hashed so the name stays a valid
// tmux target and is stable across mdrun invocations.
func SessionName(document, terminal string) string {
	if terminal == "" {
		terminal = "default"
	}
	abs, err := filepath.Abs(document)
	if err != nil || document == "" {
		abs = document
	}
	sum := sha1.Sum([]byte(abs))
	return hex.EncodeToString(sum[:])[:8] + "-" + terminal
}

// sessionTarget matches fullName exactly. A bare -t name also matches any
// session whose name starts with it, so "west" would find "west2".
func sessionTarget(fullName string) string { return "=" + fullName }

// paneTarget addresses the active pane of the exactly named session.
func paneTarget(fullName string) string { return "=" + fullName + ":" }

// filterTMUX removes the TMUX env var so we can attach from within tmux.
func filterTMUX(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
