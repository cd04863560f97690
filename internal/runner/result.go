package runner

import (
	"fmt"
	"time"
)

// Result is the outcome of one captured run. It is never modified after Run
// returns it.
type Result struct {
	Stdout    string
	Stderr    string // only set when the run failed
	ExitCode  int
	Succeeded bool
	Duration  time.Duration
}

// Output returns stdout on success, and stdout followed by the failure
// message and stderr otherwise.
func (r *Result) Output() string {
	if r.Succeeded {
		return r.Stdout
	}
	return r.Stdout + r.Failure()
}

// Failure describes a non-zero exit; empty on success.
func (r *Result) Failure() string {
	if r.Succeeded {
		return ""
	}
	return fmt.Sprintf("Command failed with exit code %d\n%s", r.ExitCode, r.Stderr)
}

// SpawnError reports that the executable could not be started at all. It
// carries no exit code.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
