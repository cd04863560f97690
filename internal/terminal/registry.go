package terminal

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry maps session keys to live sessions. It is the sole owner of its
// sessions; create one per application and Close it on shutdown.
type Registry struct {
	launcher    Launcher
	logger      *zap.Logger
	initCommand string

	mu        sync.Mutex
	sessions  map[Key]*Session
	nextIndex int

	creating singleflight.Group
}

type RegistryOption func(*Registry)

// WithInitCommand overrides the command sent once to every new terminal.
// An empty command disables it.
func WithInitCommand(cmd string) RegistryOption {
	return func(r *Registry) { r.initCommand = cmd }
}

func NewRegistry(launcher Launcher, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		launcher:    launcher,
		logger:      logger,
		initCommand: initCommandFor(runtime.GOOS),
		sessions:    make(map[Key]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// initCommandFor returns the one-time setup for a new shell: no history
// expansion and no duplicate history entries. cmd.exe needs neither.
func initCommandFor(goos string) string {
	if goos == "windows" {
		return ""
	}
	return "set +H 2>/dev/null; export HISTCONTROL=ignoredups:ignorespace"
}

// Acquire returns the live session for key, creating it in workDir on a miss.
// Concurrent callers for the same key share a single creation.
func (r *Registry) Acquire(ctx context.Context, key Key, workDir string) (*Session, error) {
	key = key.Normalize()
	if s, ok := r.Lookup(key); ok {
		return s, nil
	}

	v, err, _ := r.creating.Do(key.Document+"\x00"+key.Name, func() (any, error) {
		r.mu.Lock()
		if s, ok := r.sessions[key]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.nextIndex++
		index := r.nextIndex
		r.mu.Unlock()

		return r.create(ctx, key, index, workDir)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) create(ctx context.Context, key Key, index int, workDir string) (*Session, error) {
	spec := LaunchSpec{Key: key, Index: index, DisplayName: displayName(key, index), WorkDir: workDir}
	t, adopted, err := r.launcher.Launch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("launch terminal for %s: %w", key, err)
	}

	if !adopted && r.initCommand != "" {
		if err := t.Send(r.initCommand); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("initialize terminal for %s: %w", key, err)
		}
	}

	s := &Session{
		Key:         key,
		Index:       index,
		DisplayName: spec.DisplayName,
		WorkDir:     workDir,
		Terminal:    t,
		Created:     time.Now(),
	}
	r.mu.Lock()
	r.sessions[key] = s
	r.mu.Unlock()

	r.logger.Info("terminal session created",
		zap.String("key", key.String()),
		zap.String("terminal", t.Name()),
		zap.Int("index", index),
		zap.Bool("adopted", adopted))

	go r.watch(s)
	return s, nil
}

// watch releases s once its terminal ends.
func (r *Registry) watch(s *Session) {
	<-s.Terminal.Done()
	r.Release(s)
}

// Lookup returns the live session for key without creating one.
func (r *Registry) Lookup(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key.Normalize()]
	return s, ok
}

// Send forwards code to the session after escaping history-expansion
// triggers.
func (r *Registry) Send(s *Session, code string) error {
	if err := s.Terminal.Send(EscapeHistory(code)); err != nil {
		return fmt.Errorf("send to %s: %w", s.DisplayName, err)
	}
	return nil
}

// Release removes s from the registry if it is still the entry for its key,
// so the next Acquire starts a fresh session. Releasing twice is harmless.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	cur, ok := r.sessions[s.Key]
	if ok && cur == s {
		delete(r.sessions, s.Key)
	}
	r.mu.Unlock()

	if ok && cur == s {
		r.logger.Info("terminal session released", zap.String("key", s.Key.String()))
	}
}

// Sessions returns the live sessions ordered by creation index.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Close closes every terminal and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[Key]*Session)
	r.mu.Unlock()

	var errs []error
	for key, s := range sessions {
		if err := s.Terminal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// EscapeHistory prefixes a backslash to every line that starts with "!" so
// an interactive shell does not treat it as a history reference.
func EscapeHistory(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "!") {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}
