//go:build unix

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

// osRegistry implements Registry with POSIX signals: signal 0 probes
// liveness, SIGTERM requests shutdown.
type osRegistry struct{}

func (osRegistry) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	// EPERM means the process exists but belongs to another user.
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (osRegistry) Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
