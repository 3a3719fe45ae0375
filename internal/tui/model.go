// Package tui renders a live run monitor: one progress bar per task, driven
// by the event bus, plus a run-level summary line. The program quits on its
// own when the run finishes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teakit/teakit/internal/events"
)

// taskRow tracks one task's display state.
type taskRow struct {
	name     string
	status   string
	progress float64
	context  string
	errMsg   string
}

// Model is the root Bubble Tea model for the run monitor.
type Model struct {
	pipeline string
	rows     []taskRow
	index    map[string]int
	bar      progress.Model
	eventSub <-chan events.Event
	run      events.RunProgress
	finished bool
	ok       bool
	width    int
	quitting bool
}

// New creates a monitor for the named pipeline. tasks fixes the display
// order; it should match the graph's topological order. The model subscribes
// to all events from the bus using SubscribeAll.
func New(bus *events.Bus, pipeline string, tasks []string) Model {
	rows := make([]taskRow, len(tasks))
	index := make(map[string]int, len(tasks))
	for i, name := range tasks {
		rows[i] = taskRow{name: name, status: "pending"}
		index[name] = i
	}

	return Model{
		pipeline: pipeline,
		rows:     rows,
		index:    index,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		eventSub: bus.SubscribeAll(events.DefaultBufSize),
	}
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := msg.Width / 3
		if barWidth < 10 {
			barWidth = 10
		}
		m.bar.Width = barWidth

	case events.TaskStarted:
		if i, ok := m.index[msg.Task]; ok {
			m.rows[i].status = "running"
		}
		return m, waitForEvent(m.eventSub)

	case events.TaskProgress:
		if i, ok := m.index[msg.Task]; ok {
			m.rows[i].progress = msg.Progress
			m.rows[i].context = msg.Context
		}
		return m, waitForEvent(m.eventSub)

	case events.TaskFinished:
		if i, ok := m.index[msg.Task]; ok {
			m.rows[i].status = msg.Status
			m.rows[i].errMsg = msg.Err
			if msg.Status == "succeeded" {
				m.rows[i].progress = 1.0
			}
		}
		return m, waitForEvent(m.eventSub)

	case events.RunProgress:
		m.run = msg
		return m, waitForEvent(m.eventSub)

	case events.RunFinished:
		m.finished = true
		m.ok = msg.OK
		return m, tea.Quit
	}

	return m, nil
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render(m.pipeline)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, row := range m.rows {
		if w := lipgloss.Width(row.name); w > nameWidth {
			nameWidth = w
		}
	}

	for _, row := range m.rows {
		status := statusStyle(row.status).Render(fmt.Sprintf("%-9s", row.status))
		name := fmt.Sprintf("%-*s", nameWidth, row.name)
		b.WriteString(fmt.Sprintf("%s  %s  %s", status, name, m.bar.ViewAs(row.progress)))
		if row.context != "" && row.status == "running" {
			b.WriteString("  ")
			b.WriteString(StyleContext.Render(row.context))
		}
		if row.errMsg != "" {
			b.WriteString("\n")
			b.WriteString(strings.Repeat(" ", 11))
			b.WriteString(StyleError.Render(row.errMsg))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.finished {
		verdict := StyleStatusSucceeded.Render("run succeeded")
		if !m.ok {
			verdict = StyleStatusFailed.Render("run failed")
		}
		b.WriteString(verdict)
	} else if m.run.Total > 0 {
		b.WriteString(fmt.Sprintf("%d/%d done", m.run.Terminal, m.run.Total))
		if m.run.Failed > 0 {
			b.WriteString(StyleStatusFailed.Render(fmt.Sprintf("  %d failed", m.run.Failed)))
		}
		if m.run.Skipped > 0 {
			b.WriteString(StyleStatusSkipped.Render(fmt.Sprintf("  %d skipped", m.run.Skipped)))
		}
	}
	b.WriteString("\n")
	b.WriteString(StyleHelp.Render("q: quit"))
	b.WriteString("\n")

	return b.String()
}

// Finished reports whether the monitor saw the run complete (as opposed to
// the user quitting early).
func (m Model) Finished() bool {
	return m.finished
}
