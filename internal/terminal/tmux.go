package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/simon/mdrun/internal/tmux"
)

// TmuxLauncher runs each session as a detached tmux session named after its
// key, so sessions survive mdrun exiting and can be attached to.
type TmuxLauncher struct {
	exec tmux.Executor
	poll time.Duration
}

func NewTmuxLauncher(ex tmux.Executor, poll time.Duration) *TmuxLauncher {
	if poll <= 0 {
		poll = time.Second
	}
	return &TmuxLauncher{exec: ex, poll: poll}
}

// TmuxSessionName returns the full tmux session name used for key.
func TmuxSessionName(ex tmux.Executor, key Key) string {
	key = key.Normalize()
	return ex.SessionPrefix() + tmux.SessionName(key.Document, key.Name)
}

func (l *TmuxLauncher) Launch(ctx context.Context, spec LaunchSpec) (Terminal, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	fullName := TmuxSessionName(l.exec, spec.Key)

	adopted := l.exec.HasSession(fullName)
	if !adopted {
		if err := l.exec.NewSession(fullName, spec.WorkDir); err != nil {
			return nil, false, err
		}
	}

	t := &tmuxTerminal{
		exec:     l.exec,
		fullName: fullName,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go t.monitor(l.poll)
	return t, adopted, nil
}

type tmuxTerminal struct {
	exec     tmux.Executor
	fullName string
	done     chan struct{}
	stop     chan struct{}
	once     sync.Once
}

func (t *tmuxTerminal) Name() string { return t.fullName }

func (t *tmuxTerminal) Send(text string) error {
	return t.exec.SendKeys(t.fullName, text)
}

func (t *tmuxTerminal) Done() <-chan struct{} { return t.done }

// Close stops watching the tmux session but leaves it running.
func (t *tmuxTerminal) Close() error {
	t.once.Do(func() { close(t.stop) })
	return nil
}

// Kill ends the tmux session itself.
func (t *tmuxTerminal) Kill() error {
	_ = t.Close()
	return t.exec.KillSession(t.fullName)
}

// monitor polls has-session and closes done once the session is gone or the
// handle is closed.
func (t *tmuxTerminal) monitor(interval time.Duration) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.exec.HasSession(t.fullName) {
				return
			}
		}
	}
}
