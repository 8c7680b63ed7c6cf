package graph

import "fmt"

// Status is the authoritative scheduler state of a task.
type Status int

const (
	StatusPending Status = iota // Waiting for dependencies
	StatusRunning               // Process currently executing
	StatusDone                  // Finished (terminal)
	StatusFailed                // Spawn or stream error (terminal)
	StatusSkipped               // Cascaded from a failed ancestor (terminal)
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusSkipped
}

// ParseStatus maps a graph-file status string to a Status.
// An empty string means pending.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "pending", "todo":
		return StatusPending, nil
	case "running", "in-progress":
		return StatusRunning, nil
	case "done", "completed":
		return StatusDone, nil
	case "failed":
		return StatusFailed, nil
	case "skipped":
		return StatusSkipped, nil
	}
	return StatusPending, fmt.Errorf("unknown task status %q", s)
}

// Task is one node of the task graph. Topology fields are immutable after
// load; only Status mutates during a run, and only via the Scheduler.
type Task struct {
	ID          string   // Unique, "project:name"-qualified in workspace mode
	Type        string   // Task-type tag for parser selection (e.g. "build")
	Description string
	Command     string   // Shell command; empty means pass-through
	DependsOn   []string // Task IDs this task depends on
	Status      Status

	// Informational only, no scheduling effect.
	Priority       string
	Component      string
	EstimatedHours int
	Tags           []string
}

// Runnable reports whether the task has a command to execute.
// Commandless tasks transition Pending -> Done without touching the Executor.
func (t *Task) Runnable() bool {
	return t.Command != ""
}

// Metadata is optional project information from the graph file.
type Metadata struct {
	Project     string `yaml:"project"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Node is an informational architecture node from the graph file
// (components, layers). Nodes are displayed, never scheduled.
type Node struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Layer       string   `yaml:"layer,omitempty"`
	Status      string   `yaml:"status,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	Path        string   `yaml:"path,omitempty"`
}
