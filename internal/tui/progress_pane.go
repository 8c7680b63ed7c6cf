package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gidterm/gidterm/internal/events"
)

// ProgressPaneModel shows graph-level status counts and a segmented bar.
type ProgressPaneModel struct {
	total   int
	done    int
	running int
	failed  int
	skipped int
	pending int
	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates a progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.GraphProgressEvent:
		m.total = msg.Total
		m.done = msg.Done
		m.running = msg.Running
		m.failed = msg.Failed
		m.skipped = msg.Skipped
		m.pending = msg.Pending
	}

	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Graph Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:   %d\n", m.total))
	b.WriteString(fmt.Sprintf("Done:    %s\n", StyleStatusDone.Render(fmt.Sprintf("%d", m.done))))
	b.WriteString(fmt.Sprintf("Running: %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:  %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Skipped: %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", m.skipped))))
	b.WriteString(fmt.Sprintf("Pending: %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		doneWidth := (m.done * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		skippedWidth := (m.skipped * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - doneWidth - failedWidth - skippedWidth - runningWidth

		bar := StyleStatusDone.Render(strings.Repeat("=", max(0, doneWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusSkipped.Render(strings.Repeat("/", max(0, skippedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		resolved := m.done + m.failed + m.skipped
		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, resolved, m.total))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
