package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/session"
)

var (
	// Adaptive colors for light/dark terminal backgrounds
	accentColor = lipgloss.AdaptiveColor{Light: "#D6249F", Dark: "#FF79C6"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#116620", Dark: "#50FA7B"}
	redColor    = lipgloss.AdaptiveColor{Light: "#B31D28", Dark: "#FF5555"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#777777", Dark: "#6272A4"}
	hlBgColor   = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#333333"}
	cyanColor   = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#8BE9FD"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			PaddingLeft(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	selectedRowStyle = lipgloss.NewStyle().
				Background(hlBgColor)

	liveStyle = lipgloss.NewStyle().
			Foreground(greenColor)

	idleStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	langStyle = lipgloss.NewStyle().
			Foreground(cyanColor)

	confirmLabelStyle = lipgloss.NewStyle().
				Foreground(redColor).
				Bold(true).
				PaddingLeft(1)

	confirmKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
			Background(redColor).
			Bold(true).
			Padding(0, 1)

	confirmDimStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(cyanColor).
			PaddingLeft(1)

	resultBorderStyle = lipgloss.NewStyle().
				Foreground(dimColor)
)

// pad right-pads s to width with spaces (based on visual width, not byte count).
func pad(s string, width int) string {
	visual := lipgloss.Width(s)
	if visual >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visual)
}

// shortenPath abbreviates a path for display (replaces $HOME with ~, truncates).
func shortenPath(path string, maxLen int) string {
	if path == "" {
		return ""
	}
	home, _ := os.UserHomeDir()
	if home != "" && strings.HasPrefix(path, home) {
		path = "~" + path[len(home):]
	}
	if len(path) <= maxLen {
		return path
	}
	return "…" + path[len(path)-(maxLen-1):]
}

// Summary returns the first non-blank line of code, truncated to maxLen.
func Summary(code string, maxLen int) string {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxLen {
			return line[:maxLen-3] + "..."
		}
		return line
	}
	return ""
}

func (m Model) width0() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "mdrun"
	if m.doc.Path != "" {
		title += "  " + shortenPath(m.doc.Path, 60)
	} else {
		title += "  (stdin)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(fmt.Sprintf("  Error: %v\n\n", m.err))
	case len(m.blocks) == 0:
		b.WriteString("  No runnable code blocks.\n\n")
	default:
		m.renderBlocks(&b)
	}

	if m.result != nil {
		m.renderResult(&b)
	} else if m.output != nil {
		m.renderOutput(&b)
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	// Help bar / close confirmation share a slot to avoid layout shift
	if m.confirmClose != nil {
		name := m.confirmClose.Terminal
		if name == "" {
			name = "default"
		}
		b.WriteString(confirmLabelStyle.Render(fmt.Sprintf("Close terminal '%s'?", name)))
		b.WriteString("  ")
		b.WriteString(confirmKeyStyle.Render("Enter"))
		b.WriteString(confirmDimStyle.Render("confirm"))
		b.WriteString("  ")
		b.WriteString(confirmKeyStyle.Render("Esc"))
		b.WriteString(confirmDimStyle.Render("cancel"))
	} else if m.result != nil {
		b.WriteString(helpStyle.Render("j/k scroll  enter run selected  r re-run  esc close  q quit"))
	} else {
		b.WriteString(helpStyle.Render("enter run  r re-run  a attach  j/k navigate  ctrl+k close terminal  q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderBlocks(b *strings.Builder) {
	maxVis := m.maxVisibleBlocks()
	end := min(m.scrollOffset+maxVis, len(m.blocks))
	scrollable := len(m.blocks) > maxVis

	const wLine, wLang, wTerm, wState = 5, 6, 12, 9
	wCode := max(10, m.width0()-wLine-wLang-wTerm-wState-14)

	header := "    " + pad("LINE", wLine) + "  " + pad("LANG", wLang) + "  " + pad("TERMINAL", wTerm) + "  " + pad("STATE", wState) + "  CODE"
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if scrollable {
		if m.scrollOffset > 0 {
			b.WriteString(helpStyle.Render(fmt.Sprintf("    ↑ %d more", m.scrollOffset)))
		}
		b.WriteString("\n")
	}

	for i := m.scrollOffset; i < end; i++ {
		blk := m.blocks[i]
		row := " " + pad(fmt.Sprint(blk.Line+1), wLine) +
			"  " + pad(langStyle.Render(string(blk.Language)), wLang) +
			"  " + pad(m.terminalLabel(blk), wTerm) +
			"  " + pad(m.renderState(blk), wState) +
			"  " + Summary(blk.Code, wCode)

		if i == m.cursor {
			b.WriteString(cursorStyle.Render(" >"))
			b.WriteString(selectedRowStyle.Render(row))
		} else {
			b.WriteString("  ")
			b.WriteString(row)
		}
		b.WriteString("\n")
	}

	if scrollable {
		if end < len(m.blocks) {
			b.WriteString(helpStyle.Render(fmt.Sprintf("    ↓ %d more", len(m.blocks)-end)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (m Model) terminalLabel(blk block.Block) string {
	if blk.Language.Scripting() || !m.engine.Config().UseTerminal {
		return idleStyle.Render("-")
	}
	if blk.Terminal == "" {
		return "default"
	}
	return blk.Terminal
}

func (m Model) renderState(blk block.Block) string {
	if s, live := m.liveSession(blk); live {
		return liveStyle.Render("live") + " " + idleStyle.Render(session.FormatDurationCoarse(time.Since(s.Created)))
	}
	return idleStyle.Render("idle")
}

func (m Model) renderResult(b *strings.Builder) {
	width := m.width0()
	borderTitle := fmt.Sprintf(" ─── %s:%d ", filepath.Base(m.titleDoc()), m.result.Block.Line+1)
	if remaining := width - lipgloss.Width(borderTitle) - 2; remaining > 0 {
		borderTitle += strings.Repeat("─", remaining)
	}
	b.WriteString(resultBorderStyle.Render(" " + borderTitle))
	b.WriteString("\n")

	if m.result.Running {
		b.WriteString(" Running...\n")
	} else {
		lines := strings.Split(strings.TrimRight(m.result.Report, "\n"), "\n")

		maxLines := len(lines)
		if m.height > 0 {
			// title(2) + header(1) + rows + indicators(2) + gap(1) + borders(2) + status(1) + help(1)
			overhead := 10 + m.maxVisibleBlocks()
			maxLines = max(3, m.height-overhead)
		}
		start := min(m.result.Scroll, max(0, len(lines)-maxLines))
		end := min(start+maxLines, len(lines))
		for _, line := range lines[start:end] {
			b.WriteString(" " + line + "\n")
		}
	}

	b.WriteString(resultBorderStyle.Render(" " + strings.Repeat("─", max(0, width-2))))
	b.WriteString("\n")
}

// renderOutput shows the tail of in-process terminal output.
func (m Model) renderOutput(b *strings.Builder) {
	lines := m.output.Tail(m.outputLines())
	if len(lines) == 0 {
		return
	}
	width := m.width0()
	title := " ─── terminal output "
	if remaining := width - lipgloss.Width(title) - 2; remaining > 0 {
		title += strings.Repeat("─", remaining)
	}
	b.WriteString(resultBorderStyle.Render(" " + title))
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString(" " + line + "\n")
	}
	b.WriteString(resultBorderStyle.Render(" " + strings.Repeat("─", max(0, width-2))))
	b.WriteString("\n")
}

func (m Model) outputLines() int {
	if m.height == 0 {
		return 10
	}
	return max(3, m.height-10-m.maxVisibleBlocks())
}

func (m Model) titleDoc() string {
	if m.doc.Path == "" {
		return "stdin"
	}
	return m.doc.Path
}
