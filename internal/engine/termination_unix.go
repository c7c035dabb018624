//go:build !windows

package engine

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// prepareCommandForTermination puts cmd in a new process group so a kill
// reaches all descendants (see §4.5 invocation contract).
func prepareCommandForTermination(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
}

// terminateProcessTree sends SIGKILL to cmd's entire process group.
func terminateProcessTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return nil
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
	_ = cmd.Process.Kill()
	return nil
}
