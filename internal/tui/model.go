// Package tui renders the live dashboard: a task list with per-task output
// tails on the left, graph progress on the right. It consumes read-only
// observer events from the bus plus periodic scheduler snapshots; it never
// mutates orchestrator state.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gidterm/gidterm/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneProgress
)

const paneCount = 2

// SnapshotFunc supplies the current scheduler state for transitions that
// have no dedicated event (Skipped propagation, pass-through completion).
type SnapshotFunc func() []TaskState

// Model is the root Bubble Tea model.
type Model struct {
	taskPane     TaskPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	snapshot     SnapshotFunc
	width        int
	height       int
	quitting     bool
}

// New creates the dashboard model. It subscribes to all bus topics and
// seeds the task list from an initial snapshot.
func New(bus *events.Bus, snapshot SnapshotFunc) Model {
	return Model{
		taskPane:     NewTaskPaneModel(snapshot()),
		progressPane: NewProgressPaneModel(),
		eventSub:     bus.SubscribeAll(256),
		snapshot:     snapshot,
	}
}

// Init starts the event wait and the snapshot refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), snapshotTick())
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

type snapshotTickMsg struct{}

func snapshotTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return snapshotTickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyEsc, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		default:
			switch m.focusedPane {
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneProgress:
				var cmd tea.Cmd
				m.progressPane, cmd = m.progressPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.TaskStartedEvent, events.TaskOutputEvent, events.TaskStatusEvent,
		events.TaskCompletedEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.GraphProgressEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case snapshotTickMsg:
		if m.snapshot != nil {
			var cmd tea.Cmd
			m.taskPane, cmd = m.taskPane.Update(SnapshotMsg{Tasks: m.snapshot()})
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, snapshotTick())

	case tickMsg:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// computeLayout sizes the child panes.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(rightWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
