// Package agent launches the external conversational CLI for a task and
// captures its line-delimited transcript.
package agent

import (
	"errors"
	"time"
)

// ErrNoCommand is returned when a Runner has no executable configured.
var ErrNoCommand = errors.New("no command configured")

// SpawnResult is the outcome of one process invocation. Exactly one of a
// normal exit (ExitCode set) or a signal termination (Signal set) is
// reported; a spawn failure is returned as an error instead.
type SpawnResult struct {
	ExitCode    *int          `json:"exit_code"`        // nil when killed by a signal
	Signal      string        `json:"signal,omitempty"` // e.g. "SIGTERM"
	StdoutLines []string      `json:"stdout_lines"`     // in emission order
	Stderr      string        `json:"stderr"`
	TimedOut    bool          `json:"timed_out,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports a normal exit with status zero.
func (r *SpawnResult) Succeeded() bool {
	return r != nil && r.ExitCode != nil && *r.ExitCode == 0
}

// RunOptions tunes a single invocation.
type RunOptions struct {
	// Timeout triggers SIGTERM once elapsed, then SIGKILL after the
	// runner's grace period. Zero or negative means no timeout.
	Timeout time.Duration

	// Lines, when set, receives every stdout line as it is read. Sends are
	// non-blocking; a slow consumer misses lines but never stalls the
	// process. StdoutLines in the result is always complete. Run never
	// closes Lines; the caller must keep it open until Run returns.
	Lines chan<- string
}
