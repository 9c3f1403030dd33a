package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"imagenamer/internal/errors"
	"imagenamer/internal/log"
)

const pidFile = "watch.pid"

// PIDFile guards a folder against two watchers renaming the same images.
type PIDFile struct {
	path string
}

// AcquirePIDFile writes the current PID below dir, failing when another
// live watcher already holds it. A stale file is replaced.
func AcquirePIDFile(dir string) (*PIDFile, error) {
	path := filepath.Join(dir, pidFile)

	if pid, err := readPid(path); err == nil && pid != os.Getpid() && processAlive(pid) {
		return nil, errors.NewFileError(fmt.Sprintf("another watcher (pid %d) is running", pid), path, errors.FileExists, nil)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewFileError("failed to create PID directory", dir, errors.FileOperationFailed, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, errors.NewFileError("failed to write PID file", path, errors.FileOperationFailed, err)
	}
	return &PIDFile{path: path}, nil
}

// Release removes the PID file.
func (p *PIDFile) Release() {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		log.LogWithError(err).Warn("Failed to remove PID file")
	}
}

// IsWatcherRunning reports whether a live watcher holds the PID file in dir
func IsWatcherRunning(dir string) bool {
	pid, err := readPid(filepath.Join(dir, pidFile))
	return err == nil && processAlive(pid)
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parsePid(string(data))
}

// parsePid parses a PID from a string
func parsePid(pidStr string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
	if err != nil {
		return 0, fmt.Errorf("invalid PID format: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d", pid)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
