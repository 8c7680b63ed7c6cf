package agent

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Process is a detected agent process.
type Process struct {
	PID     int
	Type    Type
	Command string
	Cwd     string // empty when not detectable
}

// Detector finds running agent processes by scanning the process table.
// Scan results are cached behind a TTL so callers can poll freely.
type Detector struct {
	mu       sync.Mutex
	cache    map[int]Process
	lastScan time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewDetector creates a detector with the given scan cache TTL.
func NewDetector(ttl time.Duration) *Detector {
	return &Detector{
		cache: make(map[int]Process),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Scan returns agent processes, rescanning only when the cache has expired.
func (d *Detector) Scan() ([]Process, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastScan.IsZero() && d.now().Sub(d.lastScan) < d.ttl {
		return d.cached(), nil
	}

	procs, err := detectProcesses()
	if err != nil {
		return nil, err
	}

	d.cache = make(map[int]Process, len(procs))
	for _, p := range procs {
		d.cache[p.PID] = p
	}
	d.lastScan = d.now()

	return d.cached(), nil
}

func (d *Detector) cached() []Process {
	procs := make([]Process, 0, len(d.cache))
	for _, p := range d.cache {
		procs = append(procs, p)
	}
	return procs
}

// FindByDirectory returns the first cached agent process whose working
// directory contains or is contained by dir.
func (d *Detector) FindByDirectory(dir string) (Process, bool) {
	if _, err := d.Scan(); err != nil {
		return Process{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.cache {
		if p.Cwd == "" {
			continue
		}
		if strings.HasPrefix(p.Cwd, dir) || strings.HasPrefix(dir, p.Cwd) {
			return p, true
		}
	}
	return Process{}, false
}

// Alive reports whether the process with the given PID still exists.
// Signal 0 probes existence without delivering anything; EPERM means the
// process exists but belongs to another user.
func (d *Detector) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// detectProcesses shells out to ps and matches command lines against the
// known agent patterns.
func detectProcesses() ([]Process, error) {
	out, err := exec.Command("ps", "-eo", "pid,command").Output()
	if err != nil {
		return nil, fmt.Errorf("scanning processes: %w", err)
	}

	var procs []Process
	lines := strings.Split(string(out), "\n")
	for _, line := range lines[1:] { // skip header
		fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		command := strings.TrimSpace(fields[1])
		cmdLower := strings.ToLower(command)

		for _, agentType := range detectableTypes {
			matched := false
			for _, pattern := range agentType.ProcessPatterns() {
				if strings.HasPrefix(cmdLower, pattern) ||
					strings.Contains(cmdLower, "/"+pattern) ||
					strings.Contains(cmdLower, " "+pattern) {
					matched = true
					break
				}
			}
			if matched {
				procs = append(procs, Process{
					PID:     pid,
					Type:    agentType,
					Command: command,
					Cwd:     processCwd(pid),
				})
				break
			}
		}
	}

	return procs, nil
}

// processCwd resolves a process's working directory where the platform
// allows it (procfs on Linux, lsof elsewhere on Unix).
func processCwd(pid int) string {
	if runtime.GOOS == "linux" {
		if target, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid)); err == nil {
			return target
		}
		return ""
	}

	out, err := exec.Command("lsof", "-a", "-p", strconv.Itoa(pid), "-d", "cwd", "-Fn").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") {
			return line[1:]
		}
	}
	return ""
}
