// Package executor owns the OS processes backing running tasks. Each started
// task gets one process attached to a pseudo-terminal and one supervision
// goroutine that turns the process's byte stream into discrete events on a
// single shared channel.
//
// The executor never touches graph state. All task status changes flow
// through the event channel to its single consumer, which is the only
// component allowed to mutate the graph.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sync/semaphore"
)

// ErrCancelled is the failure cause reported for tasks torn down by Cancel
// or Shutdown rather than by their own exit.
var ErrCancelled = errors.New("cancelled")

// ErrSaturated is returned by Start when admission control is configured
// and all slots are taken. The task is not started and no event is emitted;
// the caller retries on a later scheduling pass.
var ErrSaturated = errors.New("executor at max concurrency")

// SpawnError wraps a failure to start a task's process. The same failure is
// also emitted as a TaskFailedEvent so the consumer sees it on the ordinary
// event path.
type SpawnError struct {
	ID  string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning task %q: %v", e.ID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Options configures a new Executor.
type Options struct {
	// Shell is the interpreter the task command is passed to via -c.
	// Defaults to /bin/sh.
	Shell string
	// MaxConcurrent caps simultaneously running processes. Zero means
	// unbounded.
	MaxConcurrent int64
	// EventBuffer sizes the shared event channel. Defaults to 256.
	EventBuffer int
}

// Executor spawns one PTY-attached process per started task and emits
// Started/Output/Completed/Failed events through a single channel. Events
// for one task arrive in order; events across tasks interleave in arrival
// order.
type Executor struct {
	shell  string
	events chan Event
	sem    *semaphore.Weighted

	mu    sync.Mutex
	procs map[string]*proc
	wg    sync.WaitGroup
}

type proc struct {
	cmd       *exec.Cmd
	tty       *os.File
	started   time.Time
	cancelled bool
}

// Event is the executor's only output contract: one of StartedEvent,
// OutputEvent, CompletedEvent, FailedEvent.
type Event interface {
	TaskID() string
}

// StartedEvent is emitted immediately after the process spawns.
type StartedEvent struct {
	ID      string
	PID     int
	Command string
}

func (e StartedEvent) TaskID() string { return e.ID }

// OutputEvent carries one completed line of combined stdout/stderr.
type OutputEvent struct {
	ID   string
	Line string
}

func (e OutputEvent) TaskID() string { return e.ID }

// CompletedEvent is emitted when the process exits on its own. The exit
// code is reported, not interpreted; success policy belongs to the consumer.
type CompletedEvent struct {
	ID       string
	ExitCode int
	Duration time.Duration
}

func (e CompletedEvent) TaskID() string { return e.ID }

// FailedEvent is emitted instead of CompletedEvent when the process could
// not be spawned, the stream broke, or the task was cancelled.
type FailedEvent struct {
	ID       string
	Err      error
	Duration time.Duration
}

func (e FailedEvent) TaskID() string { return e.ID }

// New creates an Executor. The event channel is created here and owned by
// the executor; it is closed by Shutdown once all supervision goroutines
// have drained.
func New(opts Options) *Executor {
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = 256
	}
	e := &Executor{
		shell:  shell,
		events: make(chan Event, buf),
		procs:  make(map[string]*proc),
	}
	if opts.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return e
}

// Events returns the shared event channel. It must have exactly one
// consumer.
func (e *Executor) Events() <-chan Event { return e.events }

// Start spawns the task's command in its own process group, attached to a
// pseudo-terminal so line-buffered and interactive CLIs behave as they
// would in a real terminal. When admission control is configured and no
// slot is free, Start returns ErrSaturated without spawning or emitting
// anything — blocking here would stall the event consumer that frees the
// slots.
//
// Start never sends into the event channel itself: the caller is typically
// the channel's sole consumer, so a send from here would deadlock once the
// buffer fills. StartedEvent comes from the supervision goroutine, ahead of
// any output, so per-task ordering holds.
//
// A spawn failure is reported twice on purpose: as the returned SpawnError
// for the caller's log line, and as a FailedEvent so the consumer resolves
// the task through the same path as every other failure.
func (e *Executor) Start(ctx context.Context, id, command, dir string) error {
	if e.sem != nil && !e.sem.TryAcquire(1) {
		return ErrSaturated
	}
	if err := ctx.Err(); err != nil {
		if e.sem != nil {
			e.sem.Release(1)
		}
		spawnErr := &SpawnError{ID: id, Err: err}
		e.emitAsync(FailedEvent{ID: id, Err: spawnErr})
		return spawnErr
	}

	cmd := exec.Command(e.shell, "-c", command)
	cmd.Dir = dir
	// pty.Start runs the child via setsid, which already gives it its own
	// process group (pgid == pid) so teardown kills the whole tree. Setting
	// Setpgid as well would make fork/exec fail with EPERM: setpgid is not
	// permitted on a session leader.

	started := time.Now()
	tty, err := pty.Start(cmd)
	if err != nil {
		if e.sem != nil {
			e.sem.Release(1)
		}
		spawnErr := &SpawnError{ID: id, Err: err}
		e.emitAsync(FailedEvent{ID: id, Err: spawnErr, Duration: time.Since(started)})
		return spawnErr
	}

	p := &proc{cmd: cmd, tty: tty, started: started}
	e.mu.Lock()
	e.procs[id] = p
	e.mu.Unlock()

	e.wg.Add(1)
	go e.supervise(id, command, p)
	return nil
}

// emitAsync hands an event off to its own goroutine so the emitting caller
// never blocks on the channel it may itself be draining. The goroutine is
// tracked by the wait group, so Shutdown drains it before closing.
func (e *Executor) emitAsync(ev Event) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.events <- ev
	}()
}

// supervise emits StartedEvent, reads the PTY line by line until the stream
// ends, then reaps the process and emits the terminal event.
func (e *Executor) supervise(id, command string, p *proc) {
	defer e.wg.Done()

	e.events <- StartedEvent{ID: id, PID: p.cmd.Process.Pid, Command: command}

	scanner := bufio.NewScanner(p.tty)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		e.events <- OutputEvent{ID: id, Line: line}
	}
	// A PTY read returns EIO once the child side closes; that is the
	// normal end-of-stream signal, not a failure.
	scanErr := scanner.Err()
	if scanErr != nil && errors.Is(scanErr, syscall.EIO) {
		scanErr = nil
	}

	waitErr := p.cmd.Wait()
	p.tty.Close()
	duration := time.Since(p.started)

	e.mu.Lock()
	cancelled := p.cancelled
	delete(e.procs, id)
	e.mu.Unlock()
	if e.sem != nil {
		e.sem.Release(1)
	}

	switch {
	case cancelled:
		e.events <- FailedEvent{ID: id, Err: ErrCancelled, Duration: duration}
	case scanErr != nil:
		e.events <- FailedEvent{ID: id, Err: fmt.Errorf("reading task output: %w", scanErr), Duration: duration}
	default:
		exitCode := 0
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if waitErr != nil {
			e.events <- FailedEvent{ID: id, Err: fmt.Errorf("waiting on task process: %w", waitErr), Duration: duration}
			return
		}
		e.events <- CompletedEvent{ID: id, ExitCode: exitCode, Duration: duration}
	}
}

// Cancel force-terminates a running task's whole process group. The
// supervision goroutine then reports the task through a FailedEvent with
// ErrCancelled as the cause.
func (e *Executor) Cancel(id string) error {
	e.mu.Lock()
	p, ok := e.procs[id]
	if ok {
		p.cancelled = true
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %q is not running", id)
	}
	return killGroup(p.cmd)
}

// CancelAll tears down every running process group. Used on shutdown.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	procs := make([]*proc, 0, len(e.procs))
	for _, p := range e.procs {
		p.cancelled = true
		procs = append(procs, p)
	}
	e.mu.Unlock()

	for _, p := range procs {
		killGroup(p.cmd)
	}
}

// killGroup sends SIGKILL to the process group (negative PID) so child
// processes spawned by the task die with it.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return errors.New("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing process group: %w", err)
	}
	return nil
}

// PID returns the process ID backing a running task, for liveness checks.
func (e *Executor) PID(id string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.procs[id]
	if !ok || p.cmd.Process == nil {
		return 0, false
	}
	return p.cmd.Process.Pid, true
}

// Running returns the number of currently supervised processes.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.procs)
}

// Shutdown cancels every running task, waits for all supervision goroutines
// to emit their terminal events, and closes the event channel. The consumer
// must keep draining the channel while Shutdown runs.
func (e *Executor) Shutdown() {
	e.CancelAll()
	e.wg.Wait()
	close(e.events)
}
