package runtui

import "github.com/agusx1211/cli-worker/internal/orchestrator"

// LineMsg carries one stdout line from the running CLI.
type LineMsg struct {
	Line string
}

// DoneMsg signals that the task finished.
type DoneMsg struct {
	Outcome *orchestrator.Outcome
	Err     error
}
