package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PTYLauncher runs each session as a shell on a pseudo-terminal owned by the
// mdrun process. Terminal output is copied to Output.
type PTYLauncher struct {
	Shell  string
	Output io.Writer
}

func (l *PTYLauncher) shell() string {
	if l.Shell != "" {
		return l.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Launch starts the shell unless ctx is already done. The shell outlives ctx;
// it ends with Close or when it exits.
func (l *PTYLauncher) Launch(ctx context.Context, spec LaunchSpec) (Terminal, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	cmd := exec.Command(l.shell())
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 120})
	if err != nil {
		return nil, false, fmt.Errorf("failed to start PTY: %w", err)
	}

	t := &ptyTerminal{
		name: spec.DisplayName,
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	go func() { _, _ = io.Copy(out, ptmx) }()
	go t.monitor()
	return t, false, nil
}

type ptyTerminal struct {
	name string
	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func (t *ptyTerminal) Name() string { return t.name }

func (t *ptyTerminal) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("terminal %s is closed", t.name)
	}
	_, err := io.WriteString(t.ptmx, text+"\n")
	return err
}

func (t *ptyTerminal) Done() <-chan struct{} { return t.done }

// Close kills the shell; monitor then closes done.
func (t *ptyTerminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return nil
}

// monitor waits for the shell to exit and cleans up the PTY.
func (t *ptyTerminal) monitor() {
	_ = t.cmd.Wait()

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	_ = t.ptmx.Close()
	close(t.done)
}
