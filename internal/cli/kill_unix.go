//go:build !windows

package cli

import (
	"os/exec"
	"syscall"
	"time"
)

// setupProcAttr puts the child in its own process group so the whole
// tree can be signalled at once.
func setupProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree sends SIGTERM to the child's process group, waits the grace
// period, then escalates to SIGKILL. The caller's Wait reaps the child.
func killTree(cmd *exec.Cmd, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		syscall.Kill(pgid, syscall.SIGKILL)
		cmd.Process.Kill()
	}
}
