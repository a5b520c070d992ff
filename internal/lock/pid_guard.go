// Package lock keeps a second taskq server from starting against the same
// data directory.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFileName is the name of the PID file in the taskq directory.
const PIDFileName = "serve.pid"

// PIDGuard records the PID of the running server in a file under dir.
type PIDGuard struct {
	dir string
}

// NewPIDGuard creates a guard for the given directory.
func NewPIDGuard(dir string) *PIDGuard {
	return &PIDGuard{dir: dir}
}

// Path returns the PID file location.
func (g *PIDGuard) Path() string {
	return filepath.Join(g.dir, PIDFileName)
}

// Check returns an *AlreadyRunningError when a live process owns the PID
// file. Stale or unreadable PID files are removed.
func (g *PIDGuard) Check() error {
	data, err := os.ReadFile(g.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !processExists(pid) {
		_ = os.Remove(g.Path())
		return nil
	}
	return &AlreadyRunningError{PID: pid, Path: g.Path()}
}

// Acquire checks for a live owner and then writes the current PID.
func (g *PIDGuard) Acquire() error {
	if err := g.Check(); err != nil {
		return err
	}
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(g.Path(), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file. Safe to call when it doesn't exist.
func (g *PIDGuard) Release() {
	_ = os.Remove(g.Path())
}

// AlreadyRunningError indicates another server holds the guard.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("taskq server already running (pid %d, remove %s if stale)", e.PID, e.Path)
}

// processExists sends signal 0, since FindProcess always succeeds on Unix.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
