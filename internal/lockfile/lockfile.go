// Package lockfile implements the advisory single-instance guard: a plain
// text file holding the owning PID. The check-then-write is not atomic; a
// narrow race between the liveness check and the write is accepted for this
// single-operator tool.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning means a live process owns the lock file.
var ErrAlreadyRunning = errors.New("monitor already running")

// ErrNotRunning means no live instance was found to stop.
var ErrNotRunning = errors.New("monitor not running")

// Registry abstracts OS process liveness and termination so lock handling
// stays testable and portable.
type Registry interface {
	IsAlive(pid int) bool
	Terminate(pid int) error
}

// Lock guards a PID file.
type Lock struct {
	path     string
	registry Registry
}

// New creates a lock for path. A nil registry uses the OS implementation.
func New(path string, registry Registry) *Lock {
	if registry == nil {
		registry = osRegistry{}
	}
	return &Lock{path: path, registry: registry}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// ReadPID returns the PID recorded in the lock file, or 0 if the file is
// missing or unreadable.
func (l *Lock) ReadPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Acquire claims the lock for pid. A live owner fails with
// ErrAlreadyRunning; a stale lock file is removed and overwritten.
func (l *Lock) Acquire(pid int) error {
	if existing := l.ReadPID(); existing > 0 {
		if l.registry.IsAlive(existing) {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, existing)
		}
		// Stale lock from a crashed run.
		_ = os.Remove(l.path)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating lock directory: %w", err)
		}
	}
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. Safe to call on any exit path.
func (l *Lock) Release() {
	_ = os.Remove(l.path)
}

// Stop terminates the instance recorded in the lock file and removes the
// file once the process is gone. It waits up to wait for the process to
// exit.
func (l *Lock) Stop(wait time.Duration) error {
	pid := l.ReadPID()
	if pid <= 0 {
		return fmt.Errorf("%w: no lock file at %s", ErrNotRunning, l.path)
	}

	if !l.registry.IsAlive(pid) {
		l.Release()
		return fmt.Errorf("%w: pid %d not alive, removed stale lock", ErrNotRunning, pid)
	}

	if err := l.registry.Terminate(pid); err != nil {
		return fmt.Errorf("terminating pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !l.registry.IsAlive(pid) {
			l.Release()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("pid %d still running after %s", pid, wait)
}
