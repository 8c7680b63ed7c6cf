package agent

import "strings"

const (
	// WindowCap is the number of output lines callers keep per task.
	WindowCap = 50
	// scanDepth is how many of the most recent lines classification inspects.
	scanDepth = 10
)

// StatusClassifier infers a RuntimeStatus from recent output lines.
// Pattern sets are checked in fixed priority order across the whole scanned
// window: an error line anywhere in range outranks a completion line that
// arrived after it.
type StatusClassifier struct {
	errorPatterns     []string
	waitingPatterns   []string
	completedPatterns []string
	thinkingPatterns  []string
}

// NewStatusClassifier creates a classifier with the default pattern sets.
func NewStatusClassifier() *StatusClassifier {
	return &StatusClassifier{
		errorPatterns: []string{
			"error:", "error!", "failed", "failure", "exception", "panic",
			"crash", "aborted", "fatal", "cannot", "couldn't", "unable to",
			"permission denied",
		},
		waitingPatterns: []string{
			"waiting for input", "waiting for", "press enter", "press any key",
			"[y/n]", "(y/n)", "confirm", "continue?", "proceed?", "approve",
			"permission", "enter your", "type your", "would you like",
			"do you want", "please provide", "please enter",
		},
		completedPatterns: []string{
			"done", "completed", "finished", "success", "all tasks complete",
			"goodbye", "bye", "exiting", "session ended", "task complete",
		},
		thinkingPatterns: []string{
			"thinking", "processing", "analyzing", "generating", "working on",
			"computing", "waiting for response", "loading", "searching",
			"reading", "reviewing",
		},
	}
}

// Classify derives a status from the most recent output lines and a
// liveness check. It never mutates its inputs. Callers are responsible for
// trimming the line history to WindowCap entries before calling.
func (c *StatusClassifier) Classify(lines []string, processAlive bool) RuntimeStatus {
	if !processAlive {
		return StatusNotRunning
	}

	// Lower-case the scanned slice once, most recent first.
	recent := make([]string, 0, scanDepth)
	for i := len(lines) - 1; i >= 0 && len(recent) < scanDepth; i-- {
		recent = append(recent, strings.ToLower(lines[i]))
	}

	// Priority order is fixed: errors outrank waiting outrank completion
	// outrank thinking, regardless of line position within the scan.
	for _, check := range []struct {
		patterns []string
		status   RuntimeStatus
	}{
		{c.errorPatterns, StatusError},
		{c.waitingPatterns, StatusWaitingInput},
		{c.completedPatterns, StatusCompleted},
		{c.thinkingPatterns, StatusThinking},
	} {
		for _, line := range recent {
			for _, pattern := range check.patterns {
				if strings.Contains(line, pattern) {
					return check.status
				}
			}
		}
	}

	return StatusRunning
}

// OutputWindow is a bounded line history: appends beyond the cap evict the
// oldest entries first.
type OutputWindow struct {
	lines []string
	cap   int
}

// NewOutputWindow creates a window with the default WindowCap.
func NewOutputWindow() *OutputWindow {
	return &OutputWindow{cap: WindowCap}
}

// Append adds a line, evicting the oldest if the window is full.
func (w *OutputWindow) Append(line string) {
	w.lines = append(w.lines, line)
	if len(w.lines) > w.cap {
		w.lines = w.lines[len(w.lines)-w.cap:]
	}
}

// Lines returns the current window contents, oldest first.
// The returned slice must not be mutated.
func (w *OutputWindow) Lines() []string {
	return w.lines
}

// Len returns the number of retained lines.
func (w *OutputWindow) Len() int {
	return len(w.lines)
}
