package terminal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTerminal struct {
	name string

	mu     sync.Mutex
	sent   []string
	closed bool
	done   chan struct{}
	once   sync.Once
}

func (f *fakeTerminal) Name() string { return f.name }

func (f *fakeTerminal) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTerminal) Done() <-chan struct{} { return f.done }

func (f *fakeTerminal) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.exit()
	return nil
}

// exit simulates the user closing the terminal.
func (f *fakeTerminal) exit() { f.once.Do(func() { close(f.done) }) }

func (f *fakeTerminal) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeLauncher struct {
	mu        sync.Mutex
	launched  []LaunchSpec
	terminals []*fakeTerminal
	adopt     bool
	err       error
	delay     time.Duration
}

func (l *fakeLauncher) Launch(ctx context.Context, spec LaunchSpec) (Terminal, bool, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	t := &fakeTerminal{name: spec.DisplayName, done: make(chan struct{})}
	l.launched = append(l.launched, spec)
	l.terminals = append(l.terminals, t)
	return t, l.adopt, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

const initCmd = "set +H 2>/dev/null; export HISTCONTROL=ignoredups:ignorespace"

func newTestRegistry(l *fakeLauncher) *Registry {
	return NewRegistry(l, zap.NewNop(), WithInitCommand(initCmd))
}

func TestAcquireReusesSession(t *testing.T) {
	l := &fakeLauncher{}
	r := newTestRegistry(l)
	ctx := context.Background()

	a, err := r.Acquire(ctx, Key{Document: "/notes/ops.md"}, "/notes")
	require.NoError(t, err)
	b, err := r.Acquire(ctx, Key{Document: "/notes/ops.md", Name: DefaultName}, "/notes")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, l.count())
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, "/notes", a.WorkDir)
	assert.Equal(t, "mdrun 1: ops.md", a.DisplayName)
	assert.Equal(t, []string{initCmd}, l.terminals[0].Sent(), "init command is sent once at creation")
}

func TestAcquireDistinctKeys(t *testing.T) {
	l := &fakeLauncher{}
	r := newTestRegistry(l)
	ctx := context.Background()

	base, err := r.Acquire(ctx, Key{Document: "/notes/ops.md"}, "/notes")
	require.NoError(t, err)
	west, err := r.Acquire(ctx, Key{Document: "/notes/ops.md", Name: "west"}, "/notes")
	require.NoError(t, err)
	other, err := r.Acquire(ctx, Key{Document: "/notes/db.md"}, "/notes")
	require.NoError(t, err)

	assert.NotSame(t, base, west)
	assert.NotSame(t, base, other)
	assert.Equal(t, []int{1, 2, 3}, []int{base.Index, west.Index, other.Index})
	assert.Equal(t, "mdrun 2: ops.md (west)", west.DisplayName)
	assert.Len(t, r.Sessions(), 3)
}

func TestAcquireConcurrentCreatesOnce(t *testing.T) {
	l := &fakeLauncher{delay: 20 * time.Millisecond}
	r := newTestRegistry(l)
	key := Key{Document: "/notes/ops.md", Name: "east"}

	var wg sync.WaitGroup
	results := make([]*Session, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Acquire(context.Background(), key, "/notes")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, l.count())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestReleaseOnTerminalExit(t *testing.T) {
	l := &fakeLauncher{}
	r := newTestRegistry(l)
	key := Key{Document: "/notes/ops.md"}

	first, err := r.Acquire(context.Background(), key, "/notes")
	require.NoError(t, err)

	l.terminals[0].exit()
	require.Eventually(t, func() bool {
		_, ok := r.Lookup(key)
		return !ok
	}, time.Second, 5*time.Millisecond)

	second, err := r.Acquire(context.Background(), key, "/notes")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Index, "display index keeps increasing")
	assert.Equal(t, 2, l.count())
}

func TestReleaseIgnoresStaleSession(t *testing.T) {
	l := &fakeLauncher{}
	r := newTestRegistry(l)
	key := Key{Document: "/notes/ops.md"}

	first, err := r.Acquire(context.Background(), key, "/notes")
	require.NoError(t, err)
	r.Release(first)
	second, err := r.Acquire(context.Background(), key, "/notes")
	require.NoError(t, err)

	r.Release(first)
	got, ok := r.Lookup(key)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestAcquireAdoptedSkipsInit(t *testing.T) {
	l := &fakeLauncher{adopt: true}
	r := newTestRegistry(l)

	_, err := r.Acquire(context.Background(), Key{Document: "/notes/ops.md"}, "/notes")
	require.NoError(t, err)
	assert.Empty(t, l.terminals[0].Sent())
}

func TestAcquireLaunchError(t *testing.T) {
	boom := errors.New("tmux not found")
	r := newTestRegistry(&fakeLauncher{err: boom})
	key := Key{Document: "/notes/ops.md"}

	_, err := r.Acquire(context.Background(), key, "/notes")
	assert.ErrorIs(t, err, boom)
	_, ok := r.Lookup(key)
	assert.False(t, ok)
}

func TestSendEscapesHistory(t *testing.T) {
	l := &fakeLauncher{}
	r := NewRegistry(l, zap.NewNop(), WithInitCommand(""))

	s, err := r.Acquire(context.Background(), Key{Document: "/notes/ops.md"}, "/notes")
	require.NoError(t, err)
	require.NoError(t, r.Send(s, "!ls\necho hi\n!!"))
	require.NoError(t, r.Send(s, "echo again"))

	assert.Equal(t, []string{`\!ls` + "\necho hi\n" + `\!!`, "echo again"}, l.terminals[0].Sent())
}

func TestCloseClosesAll(t *testing.T) {
	l := &fakeLauncher{}
	r := newTestRegistry(l)
	for _, name := range []string{"a", "b"} {
		_, err := r.Acquire(context.Background(), Key{Document: "/notes/ops.md", Name: name}, "/notes")
		require.NoError(t, err)
	}

	require.NoError(t, r.Close())
	assert.Empty(t, r.Sessions())
	for _, term := range l.terminals {
		assert.True(t, term.closed)
	}
}

func TestInitCommandFor(t *testing.T) {
	assert.Empty(t, initCommandFor("windows"))
	assert.Contains(t, initCommandFor("linux"), "set +H")
	assert.Contains(t, initCommandFor("darwin"), "HISTCONTROL")
}

func TestEscapeHistory(t *testing.T) {
	assert.Equal(t, "echo hi", EscapeHistory("echo hi"))
	assert.Equal(t, `\!42`, EscapeHistory("!42"))
	assert.Equal(t, "echo a!b", EscapeHistory("echo a!b"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key{Document: "/a.md", Name: DefaultName}, Key{Document: "/a.md"}.Normalize())
	assert.Equal(t, "/a.md#west", Key{Document: "/a.md", Name: "west"}.String())
	assert.Equal(t, "/a.md#default", Key{Document: "/a.md"}.String())
}
