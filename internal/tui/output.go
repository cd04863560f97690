package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

const outputLimit = 64 << 10

// OutputBuffer collects terminal output written from backend goroutines and
// keeps only the most recent bytes.
type OutputBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - outputLimit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

// Tail returns up to n of the last lines written, without escape sequences
// or carriage returns.
func (b *OutputBuffer) Tail(n int) []string {
	b.mu.Lock()
	text := string(b.buf)
	b.mu.Unlock()

	text = strings.TrimRight(strings.ReplaceAll(ansi.Strip(text), "\r", ""), "\n")
	if text == "" || n <= 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
