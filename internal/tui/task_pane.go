package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/gidterm/gidterm/internal/events"
	"github.com/gidterm/gidterm/internal/graph"
)

// TaskState is the pane's view of one graph task.
type TaskState struct {
	ID       string
	Status   graph.Status
	Runtime  string
	Progress float64
	Phase    string
	Output   []string
	Duration time.Duration
}

// TaskPaneModel shows the task list on the left and the selected task's
// output tail in a scrollable viewport on the right.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	order       []string // display order: graph order as seeded
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing viewport refreshes
}

// NewTaskPaneModel creates a task pane seeded with every graph task, so
// pending and skipped tasks are visible before anything runs.
func NewTaskPaneModel(seed []TaskState) TaskPaneModel {
	m := TaskPaneModel{
		tasks:    make(map[string]*TaskState, len(seed)),
		viewport: viewport.New(0, 0),
	}
	for i := range seed {
		st := seed[i]
		m.tasks[st.ID] = &st
		m.order = append(m.order, st.ID)
	}
	return m
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	// Resize never arrives as a message here; the root model intercepts
	// tea.WindowSizeMsg and calls SetSize.
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = graph.StatusRunning
			if m.selectedID() == msg.ID {
				m.updateViewportContent()
			}
		}

	case events.TaskOutputEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Output = append(task.Output, msg.Line)
			if m.selectedID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.TaskStatusEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Runtime = msg.Runtime
			task.Progress = msg.Progress
			task.Phase = msg.Phase
		}

	case events.TaskCompletedEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = graph.StatusDone
			task.Duration = msg.Duration
			task.Output = append(task.Output, fmt.Sprintf("\n[exit %d after %v]", msg.ExitCode, msg.Duration.Round(time.Millisecond)))
			if m.selectedID() == msg.ID {
				m.updateViewportContent()
			}
		}

	case events.TaskFailedEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = graph.StatusFailed
			task.Duration = msg.Duration
			task.Output = append(task.Output, fmt.Sprintf("\n[failed: %v]", msg.Err))
			if m.selectedID() == msg.ID {
				m.updateViewportContent()
			}
		}
		// A failure may have skipped downstream tasks; the next
		// GraphProgressEvent corrects the counts, and skipped rows are
		// refreshed from the scheduler snapshot by the caller.

	case SnapshotMsg:
		for _, st := range msg.Tasks {
			if task, ok := m.tasks[st.ID]; ok {
				task.Status = st.Status
			}
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// SnapshotMsg refreshes task list statuses from a scheduler snapshot,
// catching transitions that have no dedicated event (Skipped propagation,
// pass-through completion).
type SnapshotMsg struct {
	Tasks []TaskState
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 30
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	for i, id := range m.order {
		task := m.tasks[id]
		label := id
		if len(label) > width-6 {
			label = label[:width-9] + "..."
		}

		line := fmt.Sprintf("%s %s", statusIcon(task.Status), label)
		if task.Status == graph.StatusRunning {
			line += " " + runtimeBadge(task)
		}
		if i == m.selectedIdx {
			line = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("0")).
				Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// runtimeBadge compresses classifier output and parsed progress into a
// short suffix for the list row.
func runtimeBadge(task *TaskState) string {
	parts := []string{}
	if task.Runtime != "" && task.Runtime != "running" {
		parts = append(parts, task.Runtime)
	}
	if task.Progress > 0 {
		parts = append(parts, fmt.Sprintf("%d%%", int(task.Progress*100)))
	}
	if task.Phase != "" {
		parts = append(parts, StylePhase.Render(task.Phase))
	}
	if len(parts) == 0 {
		return ""
	}
	return StyleHelp.Render("(" + strings.Join(parts, " ") + ")")
}

func statusIcon(status graph.Status) string {
	switch status {
	case graph.StatusRunning:
		return StyleStatusRunning.Render("●")
	case graph.StatusDone:
		return StyleStatusDone.Render("✓")
	case graph.StatusFailed:
		return StyleStatusFailed.Render("✗")
	case graph.StatusSkipped:
		return StyleStatusSkipped.Render("–")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m TaskPaneModel) selectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// updateViewportContent replaces the viewport with the selected task's
// output tail and scrolls to the bottom.
func (m *TaskPaneModel) updateViewportContent() {
	id := m.selectedID()
	task, ok := m.tasks[id]
	if !ok {
		m.viewport.SetContent("No task selected")
		return
	}
	if len(task.Output) == 0 {
		m.viewport.SetContent(StyleStatusPending.Render("No output yet"))
		return
	}
	m.viewport.SetContent(strings.Join(task.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	listWidth := 30
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
