// Package runtui shows a live progress view while a task runs.
package runtui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/agusx1211/cli-worker/internal/orchestrator"
	"github.com/agusx1211/cli-worker/internal/stream"
	"github.com/agusx1211/cli-worker/internal/theme"
)

const (
	tailSize     = 6
	defaultWidth = 100
)

// Model is the progress view for a single task.
type Model struct {
	taskID  string
	spinner spinner.Model
	acc     *stream.Accumulator
	tail    []string
	noise   int
	width   int
	started time.Time

	events <-chan any
	cancel func()

	stopping bool
	done     bool
	outcome  *orchestrator.Outcome
	err      error
}

// NewModel creates the view. events delivers LineMsg and DoneMsg values;
// cancel is called when the user asks to stop the task.
func NewModel(taskID string, events <-chan any, cancel func()) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner
	return Model{
		taskID:  taskID,
		spinner: sp,
		acc:     &stream.Accumulator{},
		width:   defaultWidth,
		started: time.Now(),
		events:  events,
		cancel:  cancel,
	}
}

// Result returns the outcome once DoneMsg has been received.
func (m Model) Result() (*orchestrator.Outcome, error) {
	return m.outcome, m.err
}

func waitForEvent(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{Err: fmt.Errorf("task ended without a result")}
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.stopping && m.cancel != nil {
				m.stopping = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LineMsg:
		if m.acc.Add(msg.Line) {
			if s := summarizeRecord(m.acc.Last()); s != "" {
				m.pushTail(s)
			}
		} else if strings.TrimSpace(msg.Line) != "" {
			m.noise++
		}
		return m, waitForEvent(m.events)

	case DoneMsg:
		m.done = true
		m.outcome = msg.Outcome
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) pushTail(s string) {
	m.tail = append(m.tail, s)
	if len(m.tail) > tailSize {
		m.tail = m.tail[len(m.tail)-tailSize:]
	}
}

func (m Model) View() string {
	w := m.width - 4
	if w < 20 {
		w = 20
	}

	var b strings.Builder
	status := "running"
	if m.stopping {
		status = "stopping"
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	fmt.Fprintf(&b, "%s %s %s %s\n",
		m.spinner.View(),
		theme.Title.Render("task "+m.taskID),
		theme.Badge(status),
		theme.Dim.Render(fmt.Sprintf("%s  %d records  %d other lines", elapsed, m.acc.Len(), m.noise)),
	)

	for _, line := range m.tail {
		b.WriteString("  " + theme.Dim.Render(ansi.Truncate(line, w, "…")) + "\n")
	}

	if text := m.acc.FinalText(); text != "" {
		preview := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
		b.WriteString("\n  " + theme.Label.Render("latest:") + " " + theme.Text.Render(ansi.Truncate(preview, w-8, "…")) + "\n")
	}
	if !m.done {
		b.WriteString("\n" + theme.Dim.Render("  q to stop the task") + "\n")
	}
	return b.String()
}

// summarizeRecord renders a decoded record as "role: text" for the tail.
func summarizeRecord(rec any) string {
	role, text := stream.Describe(rec)
	text = strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	switch {
	case role == "":
		return ""
	case text == "":
		return role
	default:
		return role + ": " + text
	}
}
