package runtui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/cli-worker/internal/orchestrator"
	"github.com/agusx1211/cli-worker/pkg/protocol"
)

// Run executes the task under o while showing the progress view, and
// returns the task's outcome once both have finished. o is not modified.
func Run(ctx context.Context, o *orchestrator.Orchestrator, m *protocol.Manifest) (*orchestrator.Outcome, error) {
	events := make(chan any, 256)
	lines := make(chan string, 256)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		for l := range lines {
			events <- LineMsg{Line: l}
		}
	}()

	runner := *o
	runner.Lines = lines
	go func() {
		out, err := runner.RunTask(ctx, m)
		close(lines)
		<-bridgeDone
		events <- DoneMsg{Outcome: out, Err: err}
		close(events)
	}()

	model := NewModel(m.TaskID, events, cancel)
	final, err := tea.NewProgram(model, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		cancel()
		// Drain so the task goroutine can finish.
		for ev := range events {
			if done, ok := ev.(DoneMsg); ok {
				return done.Outcome, done.Err
			}
		}
		return nil, err
	}
	return final.(Model).Result()
}
