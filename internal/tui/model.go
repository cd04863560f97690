package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/engine"
	"github.com/simon/mdrun/internal/present"
	"github.com/simon/mdrun/internal/terminal"
)

const pollInterval = 1500 * time.Millisecond

type tickMsg time.Time

// documentMsg carries a re-read of the document from disk.
type documentMsg struct {
	Text string
}

type runFinishedMsg struct {
	Block   block.Block
	Outcome *engine.Outcome
	Err     error
}

type sessionClosedMsg struct {
	Name string
	Err  error
}

type resultState struct {
	Block   block.Block
	Report  string
	Running bool
	Scroll  int
}

type Model struct {
	engine       *engine.Engine
	doc          engine.Document
	blocks       []block.Block
	cursor       int
	scrollOffset int
	result       *resultState
	last         *block.Block // most recently run block, for re-runs
	confirmClose *block.Block
	status       string
	color        bool
	output       *OutputBuffer // in-process terminal output, nil for tmux

	// AttachTarget is the tmux session to attach to after the viewer exits.
	AttachTarget string

	width, height int
	quitting      bool
	err           error
}

// NewModel returns a viewer for doc. color enables styled run reports.
// output, when non-nil, receives in-process terminal output and is shown
// below the block list.
func NewModel(e *engine.Engine, doc engine.Document, color bool, output *OutputBuffer) Model {
	return Model{
		engine: e,
		doc:    doc,
		blocks: e.Blocks(doc),
		color:  color,
		output: output,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// reloadCmd re-reads the document so edits made while the viewer is open
// show up in the block list.
func (m Model) reloadCmd() tea.Cmd {
	path := m.doc.Path
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return documentMsg{Text: string(data)}
	}
}

func (m Model) runCmd(b block.Block) tea.Cmd {
	e, doc := m.engine, m.doc
	return func() tea.Msg {
		out, err := e.Run(context.Background(), doc, b)
		return runFinishedMsg{Block: b, Outcome: out, Err: err}
	}
}

func (m Model) closeCmd(b block.Block) tea.Cmd {
	e, doc := m.engine, m.doc
	name := terminal.Key{Name: b.Terminal}.Normalize().Name
	return func() tea.Msg {
		closed, err := e.CloseSession(doc, name)
		if err == nil && !closed {
			err = fmt.Errorf("no live terminal %q", name)
		}
		return sessionClosedMsg{Name: name, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if c := m.reloadCmd(); c != nil {
			cmds = append(cmds, c)
		}
		return m, tea.Batch(cmds...)

	case documentMsg:
		if msg.Text != m.doc.Text {
			m.doc.Text = msg.Text
			m.blocks = m.engine.Blocks(m.doc)
			m.clampCursor()
		}
		return m, nil

	case runFinishedMsg:
		report := present.Report(msg.Outcome, msg.Err, m.color)
		if m.result != nil && m.result.Running {
			m.result.Running = false
			m.result.Report = report
			m.result.Scroll = 0
			return m, nil
		}
		if msg.Err != nil {
			// Failed terminal runs are shown with their code like captured ones.
			m.result = &resultState{Block: msg.Block, Report: report}
			return m, nil
		}
		m.status = strings.TrimSpace(report)
		return m, nil

	case sessionClosedMsg:
		if msg.Err != nil {
			m.status = "Error: " + msg.Err.Error()
		} else {
			m.status = fmt.Sprintf("Closed terminal %q", msg.Name)
		}
		return m, nil

	case error:
		m.err = msg
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureCursorVisible()
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits
	if key.Matches(msg, keys.CtrlC) {
		m.quitting = true
		return m, tea.Quit
	}

	if key.Matches(msg, keys.Escape) {
		if m.confirmClose != nil {
			m.confirmClose = nil
			return m, nil
		}
		m.result = nil
		return m, nil
	}

	// While a close is pending only Enter proceeds
	if m.confirmClose != nil {
		if key.Matches(msg, keys.Enter) {
			b := *m.confirmClose
			m.confirmClose = nil
			return m, m.closeCmd(b)
		}
		m.confirmClose = nil
		return m, nil
	}

	if key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if key.Matches(msg, keys.Rerun) {
		if m.last == nil {
			m.status = "Nothing to re-run yet"
			return m, nil
		}
		return m.run(*m.last)
	}

	if key.Matches(msg, keys.Close) {
		if sel := m.selectedBlock(); sel != nil {
			if _, live := m.liveSession(*sel); live {
				m.confirmClose = sel
			} else {
				m.status = "No live terminal for this block"
			}
		}
		return m, nil
	}

	if key.Matches(msg, keys.Attach) {
		return m.attach()
	}

	if m.result != nil {
		return m.handleResultKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.Enter):
		if sel := m.selectedBlock(); sel != nil {
			return m.run(*sel)
		}
	}
	return m, nil
}

// handleResultKey scrolls the result pane.
func (m Model) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.result.Scroll > 0 {
			m.result.Scroll--
		}
	case key.Matches(msg, keys.Down):
		m.result.Scroll++
	case key.Matches(msg, keys.Enter):
		if sel := m.selectedBlock(); sel != nil {
			return m.run(*sel)
		}
	}
	return m, nil
}

func (m Model) run(b block.Block) (Model, tea.Cmd) {
	m.last = &b
	m.status = ""
	if b.Language.Scripting() || !m.engine.Config().UseTerminal {
		m.result = &resultState{Block: b, Running: true}
	}
	return m, m.runCmd(b)
}

// attach quits the viewer so the caller can attach to the selected block's
// tmux session. In-process terminals cannot be attached to.
func (m Model) attach() (Model, tea.Cmd) {
	sel := m.selectedBlock()
	if sel == nil {
		return m, nil
	}
	s, live := m.liveSession(*sel)
	if !live {
		m.status = "No live terminal for this block"
		return m, nil
	}
	if m.output != nil {
		m.status = "Only tmux terminals can be attached"
		return m, nil
	}
	m.AttachTarget = s.Terminal.Name()
	m.quitting = true
	return m, tea.Quit
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if m.result != nil {
			if m.result.Scroll > 0 {
				m.result.Scroll--
			}
			return m, nil
		}
		m.moveCursor(-1)
	case tea.MouseButtonWheelDown:
		if m.result != nil {
			m.result.Scroll++
			return m, nil
		}
		m.moveCursor(1)
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 0 || next >= len(m.blocks) {
		return
	}
	m.cursor = next
	m.ensureCursorVisible()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.blocks) {
		m.cursor = max(0, len(m.blocks)-1)
	}
	m.ensureCursorVisible()
}

func (m Model) maxVisibleBlocks() int {
	if m.result == nil || m.height == 0 {
		return len(m.blocks)
	}
	maxVis := m.height / 4
	if maxVis < 3 {
		maxVis = 3
	}
	return min(maxVis, len(m.blocks))
}

func (m *Model) ensureCursorVisible() {
	maxVis := m.maxVisibleBlocks()
	if maxVis <= 0 {
		m.scrollOffset = 0
		return
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+maxVis {
		m.scrollOffset = m.cursor - maxVis + 1
	}
	m.scrollOffset = min(m.scrollOffset, max(0, len(m.blocks)-maxVis))
}

func (m Model) selectedBlock() *block.Block {
	if m.cursor < 0 || m.cursor >= len(m.blocks) {
		return nil
	}
	b := m.blocks[m.cursor]
	return &b
}

// liveSession returns the terminal session b would be sent to, if running.
func (m Model) liveSession(b block.Block) (*terminal.Session, bool) {
	if b.Language.Scripting() {
		return nil, false
	}
	return m.engine.Registry().Lookup(terminal.Key{Document: m.docKey(), Name: b.Terminal})
}

func (m Model) docKey() string {
	return engine.DocumentKey(m.doc)
}
