// Package infra holds process-level plumbing: PID lock, restart
// sentinels, and the atomic file writer shared by every JSON store.
package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/logging"
)

var log = logging.Component("infra")

// PIDLock guards against two daemon instances sharing one root.
type PIDLock struct {
	path string
}

// AcquirePIDLock writes the current PID to path. If the file exists and
// its PID belongs to a live process, acquisition fails. A stale file
// (dead PID, unparseable content) is replaced.
func AcquirePIDLock(path string) (*PIDLock, error) {
	if data, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr == nil && pidAlive(pid) {
			return nil, derrors.Infra(
				"pidlock",
				fmt.Sprintf("another instance is running (pid %d)", pid),
			)
		}
		log.Debugf("Removing stale pid file %s", path)
		os.Remove(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, derrors.Wrap(derrors.KindInfra, "pidlock", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, derrors.Wrap(derrors.KindInfra, "pidlock", err)
	}
	return &PIDLock{path: path}, nil
}

// Release removes the PID file if it still belongs to this process.
func (l *PIDLock) Release() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	if pid, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && pid == os.Getpid() {
		os.Remove(l.path)
	}
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 tests existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
