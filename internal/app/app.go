// Package app wires the scheduler, executor, classifier, parser registry,
// session recorder, and event bus into the orchestrator loop.
//
// The loop is the single consumer of the executor's event channel and the
// only writer of graph state. Supervision goroutines never touch the graph;
// every status change flows through an event handled here.
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gidterm/gidterm/internal/agent"
	"github.com/gidterm/gidterm/internal/config"
	"github.com/gidterm/gidterm/internal/events"
	"github.com/gidterm/gidterm/internal/executor"
	"github.com/gidterm/gidterm/internal/graph"
	"github.com/gidterm/gidterm/internal/scheduler"
	"github.com/gidterm/gidterm/internal/semantic"
	"github.com/gidterm/gidterm/internal/session"
)

// TaskView is a read-only snapshot of one task's state for observers.
type TaskView struct {
	ID          string
	Description string
	Command     string
	Status      graph.Status
	Runtime     agent.RuntimeStatus
	Progress    float64
	Phase       string
	Errors      []string
	Tail        []string
}

// taskRuntime is the loop's per-task working state.
type taskRuntime struct {
	window   *agent.OutputWindow
	runtime  agent.RuntimeStatus
	progress float64
	phase    string
	errors   []string
}

// AgentDetector finds coding-agent processes running outside the executor
// and answers liveness probes for them. *agent.Detector satisfies it.
type AgentDetector interface {
	Scan() ([]agent.Process, error)
	FindByDirectory(dir string) (agent.Process, bool)
	Alive(pid int) bool
}

// Options configures an App.
type Options struct {
	Config   *config.Config
	Recorder session.Recorder // nil disables session recording
	Bus      *events.Bus      // nil disables observer events
	Dir      string           // working directory for task commands
	Detector AgentDetector    // nil disables external agent detection
}

// App drives one orchestrator run over a task graph.
type App struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	exec     *executor.Executor
	class    *agent.StatusClassifier
	registry *semantic.ParserRegistry
	rec      session.Recorder
	bus      *events.Bus
	detector AgentDetector
	dir      string

	mu    sync.RWMutex
	tasks map[string]*taskRuntime
}

// New creates an App over a validated graph.
func New(g *graph.Graph, opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &App{
		cfg:   cfg,
		sched: scheduler.New(g),
		exec: executor.New(executor.Options{
			Shell:         cfg.Shell,
			MaxConcurrent: cfg.MaxConcurrent,
			EventBuffer:   cfg.EventBuffer,
		}),
		class:    agent.NewStatusClassifier(),
		registry: semantic.NewDefaultRegistry(),
		rec:      opts.Recorder,
		bus:      opts.Bus,
		detector: opts.Detector,
		dir:      opts.Dir,
		tasks:    make(map[string]*taskRuntime),
	}
}

// Scheduler exposes the scheduler for read-only observers.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Run executes the graph to completion: every task ends Done, Failed, or
// Skipped. On context cancellation it kills all running process groups,
// drains their terminal events, and returns ctx's error.
func (a *App) Run(ctx context.Context) (graph.StatusCounts, error) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	// done is nilled out after the first cancellation so the select stops
	// firing on the closed channel while terminal events drain.
	done := ctx.Done()
	cancelled := false
	for {
		if cancelled {
			a.abandonPending()
		} else {
			a.dispatch(ctx)
		}
		if a.sched.Complete() {
			break
		}

		select {
		case ev := <-a.exec.Events():
			a.handle(ctx, ev)
		case <-ticker.C:
			a.flushSession(ctx)
		case <-done:
			cancelled = true
			done = nil
			// Every cancelled process still reports through a Failed
			// event; the loop keeps draining until nothing runs.
			a.exec.CancelAll()
		}
	}

	a.flushSession(ctx)
	a.publishProgress()

	if cancelled {
		return a.sched.Counts(), ctx.Err()
	}
	return a.sched.Counts(), nil
}

// dispatch resolves pass-through tasks and starts every runnable ready
// task. A saturated executor defers the rest of the batch to a later pass.
// A spawn failure is not resolved here: the executor emits a Failed event
// for it, and the event path handles the task like any other failure.
func (a *App) dispatch(ctx context.Context) {
	for _, task := range a.sched.ResolveReady() {
		err := a.exec.Start(ctx, task.ID, task.Command, a.dir)
		if errors.Is(err, executor.ErrSaturated) {
			return
		}
		if err != nil {
			log.Printf("ERROR: starting task %q: %v", task.ID, err)
		}

		// The loop has not consumed this dispatch's events yet, so the
		// task is Running before its Started (or Failed) event is handled.
		if err := a.sched.MarkStarted(task.ID); err != nil {
			log.Printf("ERROR: marking task %q started: %v", task.ID, err)
			continue
		}

		a.mu.Lock()
		a.tasks[task.ID] = &taskRuntime{
			window:  agent.NewOutputWindow(),
			runtime: agent.StatusRunning,
		}
		a.mu.Unlock()

		if a.rec != nil {
			if err := a.rec.StartTask(ctx, task.ID, task.Command); err != nil {
				log.Printf("WARNING: recording start of task %q: %v", task.ID, err)
			}
		}
	}
}

func (a *App) handle(ctx context.Context, ev executor.Event) {
	switch ev := ev.(type) {
	case executor.StartedEvent:
		a.publish(events.TopicTask, events.TaskStartedEvent{
			ID:        ev.ID,
			Command:   ev.Command,
			Timestamp: time.Now(),
		})

	case executor.OutputEvent:
		a.handleOutput(ev)

	case executor.CompletedEvent:
		// Exit code is recorded but not interpreted: a process that ran
		// to completion is Done, success policy lives with whoever reads
		// the session.
		if err := a.sched.MarkDone(ev.ID); err != nil {
			log.Printf("ERROR: marking task %q done: %v", ev.ID, err)
		}
		a.endRuntime(ev.ID, agent.StatusCompleted)
		if a.rec != nil {
			code := ev.ExitCode
			if err := a.rec.EndTask(ctx, ev.ID, graph.StatusDone.String(), &code); err != nil {
				log.Printf("WARNING: recording end of task %q: %v", ev.ID, err)
			}
		}
		a.publish(events.TopicTask, events.TaskCompletedEvent{
			ID:        ev.ID,
			ExitCode:  ev.ExitCode,
			Duration:  ev.Duration,
			Timestamp: time.Now(),
		})
		a.publishProgress()

	case executor.FailedEvent:
		log.Printf("WARNING: task %q failed: %v", ev.ID, ev.Err)
		if err := a.sched.MarkFailed(ev.ID); err != nil {
			log.Printf("ERROR: marking task %q failed: %v", ev.ID, err)
		}
		a.endRuntime(ev.ID, agent.StatusError)
		if a.rec != nil {
			if err := a.rec.EndTask(ctx, ev.ID, graph.StatusFailed.String(), nil); err != nil {
				log.Printf("WARNING: recording end of task %q: %v", ev.ID, err)
			}
		}
		a.publish(events.TopicTask, events.TaskFailedEvent{
			ID:        ev.ID,
			Err:       ev.Err,
			Duration:  ev.Duration,
			Timestamp: time.Now(),
		})
		a.publishProgress()
	}
}

// handleOutput appends the line to the task's window, reclassifies, and
// reparses metrics over the current window.
func (a *App) handleOutput(ev executor.OutputEvent) {
	a.mu.Lock()
	rt, ok := a.tasks[ev.ID]
	if !ok {
		rt = &taskRuntime{window: agent.NewOutputWindow()}
		a.tasks[ev.ID] = rt
	}
	rt.window.Append(ev.Line)

	rt.runtime = a.class.Classify(rt.window.Lines(), a.alive(ev.ID))

	task, _ := a.sched.Task(ev.ID)
	taskType := ""
	if task != nil {
		taskType = task.Type
	}
	metrics := a.registry.Parse(taskType, strings.Join(rt.window.Lines(), "\n"))
	rt.progress = metrics.Progress
	rt.phase = metrics.Phase
	rt.errors = metrics.Errors
	runtime := rt.runtime
	a.mu.Unlock()

	if a.rec != nil {
		a.rec.AddOutput(ev.ID, ev.Line)
	}
	a.publish(events.TopicTask, events.TaskOutputEvent{
		ID:        ev.ID,
		Line:      ev.Line,
		Timestamp: time.Now(),
	})
	a.publish(events.TopicTask, events.TaskStatusEvent{
		ID:        ev.ID,
		Runtime:   runtime.String(),
		Progress:  metrics.Progress,
		Phase:     metrics.Phase,
		Timestamp: time.Now(),
	})
}

// alive reports whether the process behind a task still exists. The
// executor's PID table covers tasks it spawned; output attributed to an
// externally started agent falls back to the detector's process scan.
func (a *App) alive(id string) bool {
	if _, ok := a.exec.PID(id); ok {
		return true
	}
	if a.detector == nil {
		return false
	}
	p, ok := a.detector.FindByDirectory(a.dir)
	return ok && a.detector.Alive(p.PID)
}

// endRuntime pins a task's final runtime status once its process is gone.
func (a *App) endRuntime(id string, status agent.RuntimeStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rt, ok := a.tasks[id]; ok {
		rt.runtime = status
	}
}

// abandonPending resolves tasks that can no longer run after cancellation.
// Ready runnable tasks are started nowhere; marking them started then
// failed routes them through the ordinary state machine.
func (a *App) abandonPending() {
	for _, task := range a.sched.ResolveReady() {
		if err := a.sched.MarkStarted(task.ID); err != nil {
			continue
		}
		if err := a.sched.MarkFailed(task.ID); err != nil {
			log.Printf("ERROR: abandoning task %q: %v", task.ID, err)
		}
	}
}

func (a *App) flushSession(ctx context.Context) {
	if a.rec == nil {
		return
	}
	if err := a.rec.Save(ctx); err != nil {
		log.Printf("WARNING: flushing session: %v", err)
	}
}

func (a *App) publish(topic string, ev events.Event) {
	if a.bus != nil {
		a.bus.Publish(topic, ev)
	}
}

func (a *App) publishProgress() {
	if a.bus == nil {
		return
	}
	c := a.sched.Counts()
	a.bus.Publish(events.TopicGraph, events.GraphProgressEvent{
		Total:     c.Total,
		Pending:   c.Pending,
		Running:   c.Running,
		Done:      c.Done,
		Failed:    c.Failed,
		Skipped:   c.Skipped,
		Timestamp: time.Now(),
	})
}

// Snapshot returns a read-only view of every task for display, in
// lexicographic ID order.
func (a *App) Snapshot() []TaskView {
	tasks := a.sched.Tasks()
	views := make([]TaskView, 0, len(tasks))

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, task := range tasks {
		view := TaskView{
			ID:          task.ID,
			Description: task.Description,
			Command:     task.Command,
			Status:      task.Status,
			Runtime:     agent.StatusNotRunning,
		}
		if rt, ok := a.tasks[task.ID]; ok {
			view.Runtime = rt.runtime
			view.Progress = rt.progress
			view.Phase = rt.phase
			view.Errors = append([]string(nil), rt.errors...)
			view.Tail = append([]string(nil), rt.window.Lines()...)
		}
		views = append(views, view)
	}
	return views
}

// ExternalAgents lists coding-agent processes running outside this
// orchestrator, found by scanning the process table.
func (a *App) ExternalAgents() []agent.Process {
	if a.detector == nil {
		return nil
	}
	procs, err := a.detector.Scan()
	if err != nil {
		log.Printf("WARNING: scanning for agent processes: %v", err)
		return nil
	}
	return procs
}
