//go:build windows

package cli

import (
	"os/exec"
	"strconv"
	"time"
)

func setupProcAttr(cmd *exec.Cmd) {}

// killTree uses taskkill /T because the provider CLIs fork helper
// processes that outlive a plain Process.Kill.
func killTree(cmd *exec.Cmd, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	pid := strconv.Itoa(cmd.Process.Pid)
	exec.Command("taskkill", "/PID", pid, "/T").Run()

	done := make(chan struct{})
	go func() {
		cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		exec.Command("taskkill", "/PID", pid, "/T", "/F").Run()
	}
}
