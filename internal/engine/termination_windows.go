//go:build windows

package engine

import "os/exec"

// prepareCommandForTermination is a no-op on Windows: there is no POSIX
// process-group equivalent wired here, so termination below only reaches
// the direct child, not its descendants. Reduced fidelity versus Unix;
// documented in DESIGN.md.
func prepareCommandForTermination(cmd *exec.Cmd) {}

// terminateProcessTree kills only the direct child process.
func terminateProcessTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
