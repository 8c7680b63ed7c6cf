package graph

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// CycleError reports that the dependency relation is not acyclic.
// No scheduling can proceed on a cyclic graph.
type CycleError struct {
	Detail string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("task graph contains a cycle: %s", e.Detail)
}

// Graph owns all tasks of one run, indexed by ID, plus a reverse-dependents
// index built once at construction for failure propagation. Topology is
// immutable after construction; only per-task Status mutates, and only
// through the Scheduler.
type Graph struct {
	Metadata *Metadata
	Nodes    map[string]*Node

	tasks      map[string]*Task
	dependents map[string][]string // taskID -> tasks that depend on it
}

// New builds a graph from the given tasks, verifying that every dependency
// resolves to an existing task and that the dependency relation is acyclic.
func New(meta *Metadata, nodes map[string]*Node, tasks map[string]*Task) (*Graph, error) {
	g := &Graph{
		Metadata:   meta,
		Nodes:      nodes,
		tasks:      tasks,
		dependents: make(map[string][]string),
	}
	if g.tasks == nil {
		g.tasks = make(map[string]*Task)
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}

	for id, task := range g.tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", id, depID)
			}
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	// Deterministic propagation order.
	for _, deps := range g.dependents {
		sort.Strings(deps)
	}

	return g, nil
}

// checkAcyclic runs a topological sort over the dependency edges and turns
// any failure into a CycleError.
func (g *Graph) checkAcyclic() error {
	var edges []toposort.Edge
	for id, task := range g.tasks {
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range task.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return &CycleError{Detail: err.Error()}
	}
	return nil
}

// Task returns the live task for the given ID.
func (g *Graph) Task(id string) (*Task, bool) {
	task, ok := g.tasks[id]
	return task, ok
}

// SortedIDs returns all task IDs in lexicographic order.
func (g *Graph) SortedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// StatusCounts tallies tasks per scheduler status.
type StatusCounts struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
	Skipped int
}

// Counts returns the current status tally.
func (g *Graph) Counts() StatusCounts {
	c := StatusCounts{Total: len(g.tasks)}
	for _, task := range g.tasks {
		switch task.Status {
		case StatusPending:
			c.Pending++
		case StatusRunning:
			c.Running++
		case StatusDone:
			c.Done++
		case StatusFailed:
			c.Failed++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}
