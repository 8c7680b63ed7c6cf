package events

import "time"

// Event is the base interface for everything published on the bus.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask  = "task"
	TopicGraph = "graph"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskOutput    = "task.output"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskStatus    = "task.status"
	EventTypeGraphProgress = "graph.progress"
)

// TaskStartedEvent is emitted when a task's process has been spawned.
type TaskStartedEvent struct {
	ID        string
	Command   string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent carries one completed line of combined stdout/stderr.
// Line order within one task is guaranteed; interleaving across tasks
// reflects arrival order only.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is emitted when the task's process exits. The exit
// code is reported, not interpreted: success/failure policy belongs to the
// consumer.
type TaskCompletedEvent struct {
	ID        string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is emitted when a task's process could not be spawned or
// its output stream broke. Emitted instead of, never after, Completed.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskStatusEvent reports a change in a task's derived runtime status or
// parsed progress, for observers.
type TaskStatusEvent struct {
	ID        string
	Runtime   string
	Progress  float64
	Phase     string
	Timestamp time.Time
}

func (e TaskStatusEvent) EventType() string { return EventTypeTaskStatus }
func (e TaskStatusEvent) TaskID() string    { return e.ID }

// GraphProgressEvent summarizes scheduler-state counts across the graph.
type GraphProgressEvent struct {
	Total     int
	Pending   int
	Running   int
	Done      int
	Failed    int
	Skipped   int
	Timestamp time.Time
}

func (e GraphProgressEvent) EventType() string { return EventTypeGraphProgress }
func (e GraphProgressEvent) TaskID() string    { return "" }
