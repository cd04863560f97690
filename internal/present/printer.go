// Package present renders dispatched blocks for an output pane.
package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/simon/mdrun/internal/block"
	"github.com/simon/mdrun/internal/engine"
	"github.com/simon/mdrun/internal/runner"
)

const separator = "----------------------------------------"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Printer writes run reports to an io.Writer. Styling is off unless Color is
// set, so reports written to files and pipes stay plain.
type Printer struct {
	Out   io.Writer
	Color bool
}

func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{Out: out, Color: color}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.Color {
		return text
	}
	return s.Render(text)
}

// Header writes the preamble shown before a captured run starts.
func (p *Printer) Header(b block.Block, workDir string) {
	fmt.Fprintln(p.Out, p.style(headerStyle, fmt.Sprintf("Executing %s code block:", b.Language)))
	fmt.Fprintln(p.Out, p.style(dimStyle, separator))
	fmt.Fprintln(p.Out, b.Code)
	fmt.Fprintln(p.Out, p.style(dimStyle, separator))
	fmt.Fprintln(p.Out, "Working directory: "+workDir)
	fmt.Fprintln(p.Out)
}

// Result writes the output section of a finished captured run.
func (p *Printer) Result(res *runner.Result) {
	fmt.Fprintln(p.Out, p.style(headerStyle, "Output:"))
	if res.Stdout != "" {
		fmt.Fprint(p.Out, ensureNewline(res.Stdout))
	}
	fmt.Fprintln(p.Out)
	if res.Succeeded {
		fmt.Fprintln(p.Out, p.style(successStyle, "Command executed successfully"))
		return
	}
	fmt.Fprintln(p.Out, p.style(errorStyle, fmt.Sprintf("Error: Command failed with exit code %d", res.ExitCode)))
	if res.Stderr != "" {
		fmt.Fprint(p.Out, ensureNewline(res.Stderr))
	}
}

// Error reports a dispatch that produced no result.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.Out, p.style(errorStyle, "Error: "+err.Error()))
}

// Sent reports a block forwarded to a terminal session.
func (p *Printer) Sent(displayName string) {
	fmt.Fprintln(p.Out, "Sent to terminal "+displayName)
}

// Outcome writes a complete report for one dispatch.
func (p *Printer) Outcome(out *engine.Outcome, err error) {
	if err != nil {
		if out != nil {
			p.Header(out.Block, out.Decision.WorkDir)
		}
		p.Error(err)
		return
	}
	if out.Session != nil {
		p.Sent(out.Session.DisplayName)
		return
	}
	p.Header(out.Block, out.Decision.WorkDir)
	p.Result(out.Result)
}

// Report renders an Outcome to a string, as Outcome would write it.
func Report(out *engine.Outcome, err error, color bool) string {
	var sb strings.Builder
	NewPrinter(&sb, color).Outcome(out, err)
	return sb.String()
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
