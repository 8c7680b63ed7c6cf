package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gidterm/gidterm/internal/agent"
)

// fileGraph is the on-disk YAML shape of a graph file (graph.yml).
type fileGraph struct {
	Metadata *Metadata            `yaml:"metadata,omitempty"`
	Nodes    map[string]*Node     `yaml:"nodes,omitempty"`
	Tasks    map[string]*fileTask `yaml:"tasks"`
}

type fileTask struct {
	Type           string   `yaml:"type,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Command        string   `yaml:"command,omitempty"`
	Status         string   `yaml:"status,omitempty"`
	DependsOn      []string `yaml:"depends_on,omitempty"`
	Priority       string   `yaml:"priority,omitempty"`
	Component      string   `yaml:"component,omitempty"`
	EstimatedHours int      `yaml:"estimated_hours,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`

	// Agent-backed tasks: an agent and a prompt instead of a command.
	Agent       string   `yaml:"agent,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
	Args        []string `yaml:"args,omitempty"`
	AutoApprove bool     `yaml:"auto_approve,omitempty"`
}

// Load reads a graph file from disk, builds the graph, and validates it.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated graph from graph-file YAML.
func Parse(data []byte) (*Graph, error) {
	meta, nodes, tasks, err := decode(data)
	if err != nil {
		return nil, err
	}
	return New(meta, nodes, tasks)
}

// LoadTasks reads a graph file and returns its metadata and tasks without
// dependency or cycle validation. Callers that merge several files into one
// graph use this so references into sibling files survive until the merged
// graph is built and validated as a whole.
func LoadTasks(path string) (*Metadata, map[string]*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading graph file: %w", err)
	}
	meta, _, tasks, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	return meta, tasks, nil
}

func decode(data []byte) (*Metadata, map[string]*Node, map[string]*Task, error) {
	var fg fileGraph
	if err := yaml.Unmarshal(data, &fg); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing graph file: %w", err)
	}

	tasks := make(map[string]*Task, len(fg.Tasks))
	for id, ft := range fg.Tasks {
		task, err := ft.toTask(id)
		if err != nil {
			return nil, nil, nil, err
		}
		tasks[id] = task
	}
	return fg.Metadata, fg.Nodes, tasks, nil
}

// toTask converts the file representation to a Task, expanding agent-backed
// tasks into a concrete command line.
func (ft *fileTask) toTask(id string) (*Task, error) {
	status, err := ParseStatus(ft.Status)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", id, err)
	}

	command := ft.Command
	if command == "" && ft.Agent != "" {
		if ft.Prompt == "" {
			return nil, fmt.Errorf("task %q: agent task requires a prompt", id)
		}
		command = agent.BuildCommandString(agent.TaskSpec{
			Agent:       agent.ParseType(ft.Agent),
			Prompt:      ft.Prompt,
			Args:        ft.Args,
			AutoApprove: ft.AutoApprove,
		})
	}

	return &Task{
		ID:             id,
		Type:           ft.Type,
		Description:    ft.Description,
		Command:        command,
		DependsOn:      append([]string(nil), ft.DependsOn...),
		Status:         status,
		Priority:       ft.Priority,
		Component:      ft.Component,
		EstimatedHours: ft.EstimatedHours,
		Tags:           append([]string(nil), ft.Tags...),
	}, nil
}
