package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gidterm/gidterm/internal/graph"
)

// ErrInvalidTransition is returned when a mark operation does not match the
// task's current status. The operation is rejected and state is unchanged.
var ErrInvalidTransition = errors.New("invalid task transition")

// Scheduler wraps a Graph and owns all status transitions. Readiness is a
// pure function of current statuses, recomputed on demand — there is no
// separate scheduler state to persist.
//
// The coordinating loop is the only writer; the mutex exists so read-only
// observers can take snapshots while the loop runs.
type Scheduler struct {
	mu sync.RWMutex
	g  *graph.Graph
}

// New creates a scheduler over a validated graph.
func New(g *graph.Graph) *Scheduler {
	return &Scheduler{g: g}
}

// Ready returns the tasks whose status is Pending and whose dependencies
// are all Done or Skipped, in lexicographic ID order. The returned set can
// contain both runnable and pass-through tasks.
func (s *Scheduler) Ready() []*graph.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyLocked()
}

func (s *Scheduler) readyLocked() []*graph.Task {
	var ready []*graph.Task
	for _, id := range s.g.SortedIDs() {
		task, _ := s.g.Task(id)
		if task.Status != graph.StatusPending {
			continue
		}
		if s.depsSatisfiedLocked(task) {
			ready = append(ready, cloneTask(task))
		}
	}
	return ready
}

// depsSatisfiedLocked reports whether every dependency is Done or Skipped.
// A Skipped dependency counts as satisfied so independent branches keep
// progressing past a failure.
func (s *Scheduler) depsSatisfiedLocked(task *graph.Task) bool {
	for _, depID := range task.DependsOn {
		dep, ok := s.g.Task(depID)
		if !ok {
			return false
		}
		if dep.Status != graph.StatusDone && dep.Status != graph.StatusSkipped {
			return false
		}
	}
	return true
}

// ResolveReady repeatedly completes pass-through (commandless) tasks until
// none remain ready, then returns the runnable ready set. Resolving
// pass-through tasks first lets their completion unblock dependents within
// the same scheduling pass.
func (s *Scheduler) ResolveReady() []*graph.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		resolved := false
		for _, task := range s.readyLocked() {
			if task.Runnable() {
				continue
			}
			live, _ := s.g.Task(task.ID)
			live.Status = graph.StatusDone
			resolved = true
		}
		if !resolved {
			break
		}
	}

	var runnable []*graph.Task
	for _, task := range s.readyLocked() {
		if task.Runnable() {
			runnable = append(runnable, task)
		}
	}
	return runnable
}

// MarkStarted transitions Pending -> Running.
func (s *Scheduler) MarkStarted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.g.Task(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if task.Status != graph.StatusPending {
		return fmt.Errorf("mark started %q from %s: %w", id, task.Status, ErrInvalidTransition)
	}
	task.Status = graph.StatusRunning
	return nil
}

// MarkDone transitions Running -> Done, or Pending -> Done for
// pass-through tasks.
func (s *Scheduler) MarkDone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.g.Task(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	switch {
	case task.Status == graph.StatusRunning:
	case task.Status == graph.StatusPending && !task.Runnable():
	default:
		return fmt.Errorf("mark done %q from %s: %w", id, task.Status, ErrInvalidTransition)
	}
	task.Status = graph.StatusDone
	return nil
}

// MarkFailed transitions Running -> Failed and cascades Skipped to every
// transitive dependent that has not started. Safe to invoke repeatedly as
// failures cascade; re-running produces no further change.
func (s *Scheduler) MarkFailed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.g.Task(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if task.Status != graph.StatusRunning {
		return fmt.Errorf("mark failed %q from %s: %w", id, task.Status, ErrInvalidTransition)
	}
	task.Status = graph.StatusFailed
	s.propagateLocked(id)
	return nil
}

// propagateLocked walks the reverse-dependents index from the failed task
// and marks every Pending transitive dependent Skipped. The index is built
// once at load, so propagation never rescans the whole graph.
func (s *Scheduler) propagateLocked(failedID string) {
	stack := append([]string(nil), s.g.Dependents(failedID)...)
	seen := make(map[string]bool)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true

		task, ok := s.g.Task(id)
		if !ok {
			continue
		}
		if task.Status == graph.StatusPending {
			task.Status = graph.StatusSkipped
		}
		stack = append(stack, s.g.Dependents(id)...)
	}
}

// Task returns a copy of the task with the given ID.
func (s *Scheduler) Task(id string) (*graph.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.g.Task(id)
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in lexicographic ID order.
func (s *Scheduler) Tasks() []*graph.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*graph.Task, 0, s.g.Len())
	for _, id := range s.g.SortedIDs() {
		task, _ := s.g.Task(id)
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// Counts returns the current per-status tally.
func (s *Scheduler) Counts() graph.StatusCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Counts()
}

// Complete reports whether no task is Pending or Running — nothing left to
// schedule and nothing in flight.
func (s *Scheduler) Complete() bool {
	c := s.Counts()
	return c.Pending == 0 && c.Running == 0
}

// Metadata returns the graph's project metadata, if any.
func (s *Scheduler) Metadata() *graph.Metadata {
	return s.g.Metadata
}

func cloneTask(task *graph.Task) *graph.Task {
	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Tags != nil {
		cp.Tags = append([]string(nil), task.Tags...)
	}
	return &cp
}
