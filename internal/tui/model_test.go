package tui

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simon/mdrun/internal/config"
	"github.com/simon/mdrun/internal/engine"
	"github.com/simon/mdrun/internal/runner"
	"github.com/simon/mdrun/internal/terminal"
)

type stubTerminal struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
	once sync.Once
}

func (s *stubTerminal) Name() string { return "stub" }

func (s *stubTerminal) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubTerminal) Done() <-chan struct{} { return s.done }

func (s *stubTerminal) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubLauncher struct {
	terminals []*stubTerminal
}

func (l *stubLauncher) Launch(ctx context.Context, spec terminal.LaunchSpec) (terminal.Terminal, bool, error) {
	t := &stubTerminal{done: make(chan struct{})}
	l.terminals = append(l.terminals, t)
	return t, false, nil
}

const testDoc = "```sh\necho one\n```\n\n```bash west\necho two\n```\n"

func newTestModel(t *testing.T, useTerminal bool) (Model, *stubLauncher) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	cfg := config.Default()
	cfg.UseTerminal = useTerminal

	l := &stubLauncher{}
	reg := terminal.NewRegistry(l, zap.NewNop(), terminal.WithInitCommand(""))
	e := engine.New(cfg, reg, runner.New(zap.NewNop()), zap.NewNop())
	t.Cleanup(func() { _ = e.Close() })

	path := filepath.Join(t.TempDir(), "ops.md")
	require.NoError(t, os.WriteFile(path, []byte(testDoc), 0o644))
	return NewModel(e, engine.Document{Path: path, Text: testDoc}, false, nil), l
}

func press(m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and feeds its message back into the model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestNewModelListsBlocks(t *testing.T) {
	m, _ := newTestModel(t, true)
	require.Len(t, m.blocks, 2)
	assert.Equal(t, "west", m.blocks[1].Terminal)

	view := m.View()
	assert.Contains(t, view, "echo one")
	assert.Regexp(t, `bash\s+west\s+idle`, view)
	assert.Regexp(t, `sh\s+default\s+idle`, view)
}

func TestTerminalColumnWhenCaptured(t *testing.T) {
	m, _ := newTestModel(t, false)
	assert.Equal(t, "-", m.terminalLabel(m.blocks[1]))
	assert.NotContains(t, m.View(), "west")
}

func TestLiveStateShowsAge(t *testing.T) {
	m, _ := newTestModel(t, true)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)

	assert.Regexp(t, `^live \d+s$`, m.renderState(m.blocks[0]))
	assert.Equal(t, "idle", m.renderState(m.blocks[1]))
}

func TestEnterRunsCapturedBlock(t *testing.T) {
	m, _ := newTestModel(t, false)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.result)
	assert.True(t, m.result.Running)
	assert.Contains(t, m.View(), "Running...")

	m = drain(t, m, cmd)
	assert.False(t, m.result.Running)
	assert.Contains(t, m.result.Report, "Executing sh code block:")
	assert.Contains(t, m.result.Report, "one")
	assert.Contains(t, m.result.Report, "Command executed successfully")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.result)
}

func TestRerunUsesLastBlock(t *testing.T) {
	m, _ := newTestModel(t, false)

	m, _ = press(m, runes("r"))
	assert.Equal(t, "Nothing to re-run yet", m.status)

	m, _ = press(m, runes("j"))
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = press(m, runes("k"))
	require.Equal(t, 0, m.cursor)

	m, cmd = press(m, runes("r"))
	m = drain(t, m, cmd)
	assert.Contains(t, m.result.Report, "two", "re-run repeats the last block, not the selection")
}

func TestTerminalRunAndClose(t *testing.T) {
	m, l := newTestModel(t, true)

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlK})
	assert.Nil(t, m.confirmClose)
	assert.Equal(t, "No live terminal for this block", m.status)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, m.result, "terminal runs do not open the result pane")
	m = drain(t, m, cmd)
	assert.Contains(t, m.status, "Sent to terminal mdrun 1: ops.md")
	require.Len(t, l.terminals, 1)
	assert.Equal(t, []string{"echo one"}, l.terminals[0].sent)
	assert.Contains(t, m.View(), "live")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlK})
	require.NotNil(t, m.confirmClose)
	assert.Contains(t, m.View(), "Close terminal 'default'?")

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, m.confirmClose)
	m = drain(t, m, cmd)
	assert.Equal(t, `Closed terminal "default"`, m.status)
	assert.Empty(t, m.engine.Registry().Sessions())
}

func TestCloseConfirmationCancelled(t *testing.T) {
	m, _ := newTestModel(t, true)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlK})
	require.NotNil(t, m.confirmClose)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.confirmClose)
	assert.Len(t, m.engine.Registry().Sessions(), 1)
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, false)
	m, cmd := press(m, runes("q"))
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestDocumentReload(t *testing.T) {
	m, _ := newTestModel(t, false)
	m.cursor = 1

	next, _ := m.Update(documentMsg{Text: "```sh\nls\n```\n"})
	m = next.(Model)
	require.Len(t, m.blocks, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "echo hi", Summary("\n  echo hi\necho bye", 40))
	assert.Equal(t, "abcdefg...", Summary("abcdefghijklmnop", 10))
	assert.Empty(t, Summary("  \n", 10))
}

func TestAttachSelectedSession(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, _ = press(m, runes("a"))
	assert.Empty(t, m.AttachTarget)
	assert.Equal(t, "No live terminal for this block", m.status)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)
	m, cmd = press(m, runes("a"))
	assert.Equal(t, "stub", m.AttachTarget)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestOutputBufferTail(t *testing.T) {
	var b OutputBuffer
	_, err := b.Write([]byte("one\r\n\x1b[32mtwo\x1b[0m\r\nthree\r\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"two", "three"}, b.Tail(2))
	assert.Equal(t, []string{"one", "two", "three"}, b.Tail(10))
	assert.Nil(t, (&OutputBuffer{}).Tail(3))
}

func TestOutputBufferLimit(t *testing.T) {
	var b OutputBuffer
	chunk := make([]byte, outputLimit/2)
	for i := range chunk {
		chunk[i] = 'x'
	}
	for i := 0; i < 3; i++ {
		_, _ = b.Write(chunk)
	}
	assert.Len(t, b.buf, outputLimit)
}

func TestFailedTerminalRunOpensResult(t *testing.T) {
	m, _ := newTestModel(t, true)
	next, _ := m.Update(runFinishedMsg{Block: m.blocks[0], Outcome: &engine.Outcome{Block: m.blocks[0]}, Err: assert.AnError})
	m = next.(Model)

	require.NotNil(t, m.result)
	assert.Contains(t, m.result.Report, "Executing sh code block:")
	assert.Contains(t, m.result.Report, "Error: "+assert.AnError.Error())
}
