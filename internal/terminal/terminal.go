// Package terminal keeps one persistent interactive session per document and
// terminal name, creating sessions on first use and dropping them when the
// underlying terminal goes away.
package terminal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

const DefaultName = "default"

// Key identifies one persistent session: a document plus a terminal name.
type Key struct {
	Document string
	Name     string
}

// Normalize maps the empty name to DefaultName.
func (k Key) Normalize() Key {
	if k.Name == "" {
		k.Name = DefaultName
	}
	return k
}

func (k Key) String() string {
	return k.Document + "#" + k.Normalize().Name
}

// Terminal is one live interactive process.
type Terminal interface {
	Name() string
	// Send submits text as input, as if typed followed by Enter.
	Send(text string) error
	// Done is closed once the terminal has ended, by the user or the OS.
	Done() <-chan struct{}
	// Close releases mdrun's handle. Backends whose terminals outlive mdrun
	// (tmux) leave the terminal itself running.
	Close() error
}

// Killer is implemented by terminals whose Close leaves the underlying
// process running. Kill ends it.
type Killer interface {
	Kill() error
}

type LaunchSpec struct {
	Key         Key
	Index       int
	DisplayName string
	WorkDir     string
}

// Launcher starts terminals. adopted is true when an already running terminal
// for the key was picked up instead of starting a new one.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (t Terminal, adopted bool, err error)
}

// Session is a registry entry owning exactly one Terminal.
type Session struct {
	Key         Key
	Index       int
	DisplayName string
	WorkDir     string
	Terminal    Terminal
	Created     time.Time
}

func displayName(k Key, index int) string {
	base := filepath.Base(k.Document)
	if k.Document == "" {
		base = "untitled"
	}
	if k.Name == DefaultName {
		return fmt.Sprintf("mdrun %d: %s", index, base)
	}
	return fmt.Sprintf("mdrun %d: %s (%s)", index, base, k.Name)
}
