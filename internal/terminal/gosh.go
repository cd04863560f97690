package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// GoshLauncher runs each session as a persistent local shell driven through
// gosh. Each Send runs synchronously and its output is written to Output.
type GoshLauncher struct {
	Output  io.Writer
	Timeout time.Duration
}

func (l *GoshLauncher) Launch(ctx context.Context, spec LaunchSpec) (Terminal, bool, error) {
	svc, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, false, err
	}
	if spec.WorkDir != "" {
		if _, _, err := svc.Run(ctx, "cd "+shellQuote(spec.WorkDir)); err != nil {
			_ = svc.Close()
			return nil, false, fmt.Errorf("failed to change directory: %w", err)
		}
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	return &goshTerminal{
		name:    spec.DisplayName,
		svc:     svc,
		out:     out,
		timeout: timeout,
		done:    make(chan struct{}),
	}, false, nil
}

type goshTerminal struct {
	name    string
	svc     *gosh.Service
	out     io.Writer
	timeout time.Duration
	done    chan struct{}

	mu   sync.Mutex // serializes commands on the shell
	once sync.Once
}

func (t *goshTerminal) Name() string { return t.name }

// Send runs text in the shell. A run error means the shell is no longer
// usable, so the session ends.
func (t *goshTerminal) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return fmt.Errorf("terminal %s is closed", t.name)
	default:
	}

	stdout, status, err := t.svc.Run(context.Background(), text, runner.WithTimeout(int(t.timeout.Milliseconds())))
	if stdout != "" {
		_, _ = io.WriteString(t.out, strings.TrimRight(stdout, "\n")+"\n")
	}
	if err != nil {
		t.shutdown()
		return err
	}
	if status != 0 {
		_, _ = fmt.Fprintf(t.out, "exit status %d\n", status)
	}
	return nil
}

func (t *goshTerminal) Done() <-chan struct{} { return t.done }

func (t *goshTerminal) Close() error {
	var err error
	t.once.Do(func() {
		err = t.svc.Close()
		close(t.done)
	})
	return err
}

func (t *goshTerminal) shutdown() { _ = t.Close() }

// shellQuote wraps a string in single quotes, escaping any single quotes inside.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
