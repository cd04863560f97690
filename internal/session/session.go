// Package session describes the mdrun terminal sessions currently running in
// tmux, for listing outside the process that created them.
package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/simon/mdrun/internal/tmux"
)

type Status int

const (
	Unknown Status = iota
	Busy           // a command is still running
	Idle           // shell at its prompt
)

func (s Status) String() string {
	switch s {
	case Busy:
		return "busy"
	case Idle:
		return "idle"
	default:
		return "unknown"
	}
}

type Session struct {
	Name          string // <doc hash>-<terminal>
	FullName      string
	DocHash       string
	Terminal      string
	Status        Status
	LastLine      string // last non-blank line of the pane
	Duration      time.Duration
	AttachedCount int
	WorkDir       string
}

// ListExecutor returns the mdrun sessions known to ex.
func ListExecutor(ex tmux.Executor) ([]Session, error) {
	infos, err := ex.ListSessions()
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(infos))
	for _, info := range infos {
		output, _ := ex.CapturePaneOutput(info.FullName, 25)
		hash, term := splitName(info.Name)

		sessions = append(sessions, Session{
			Name:          info.Name,
			FullName:      info.FullName,
			DocHash:       hash,
			Terminal:      term,
			Status:        DetectStatus(output),
			LastLine:      lastLine(output),
			Duration:      time.Since(info.Created),
			AttachedCount: info.AttachedCount,
			WorkDir:       ex.GetPanePath(info.FullName),
		})
	}
	SortSessions(sessions)
	return sessions, nil
}

// ForDocument keeps only the sessions belonging to document.
func ForDocument(sessions []Session, document string) []Session {
	hash, _ := splitName(tmux.SessionName(document, ""))
	var out []Session
	for _, s := range sessions {
		if s.DocHash == hash {
			out = append(out, s)
		}
	}
	return out
}

// splitName separates "<hash>-<terminal>". Names without a hash part are
// returned whole as the terminal.
func splitName(name string) (hash, terminal string) {
	if idx := strings.IndexByte(name, '-'); idx == 8 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}

// statusPriority returns sort priority (lower = shown first).
func statusPriority(s Status) int {
	switch s {
	case Busy:
		return 0
	case Idle:
		return 1
	default:
		return 2
	}
}

// SortSessions sorts attached sessions first, then by status priority, then
// newest first.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		ai, aj := sessions[i].AttachedCount > 0, sessions[j].AttachedCount > 0
		if ai != aj {
			return ai
		}
		pi, pj := statusPriority(sessions[i].Status), statusPriority(sessions[j].Status)
		if pi != pj {
			return pi < pj
		}
		return sessions[i].Duration < sessions[j].Duration
	})
}

// DetectStatus returns the session status from raw pane output: idle when the
// last non-blank line looks like a shell prompt.
func DetectStatus(output string) Status {
	last := lastLine(output)
	if last == "" {
		return Unknown
	}
	if isPrompt(last) {
		return Idle
	}
	return Busy
}

func isPrompt(line string) bool {
	line = strings.TrimRight(line, "  ")
	for _, suffix := range []string{"$", "#", "%", ">", "❯"} {
		if strings.HasSuffix(line, suffix) {
			return true
		}
	}
	return false
}

func lastLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// FormatDurationCoarse formats a duration using only the largest unit.
func FormatDurationCoarse(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}
