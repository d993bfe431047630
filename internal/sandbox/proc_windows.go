//go:build windows

package sandbox

import "os/exec"

// configureProcAttr is a no-op on Windows; process-group semantics are
// not available and the watchdog kills the direct child only.
func configureProcAttr(_ *exec.Cmd) {}

// killProcessTree terminates the agent process.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// exitedOnResourceLimit always reports false on Windows; resource
// ceilings are not enforced there.
func exitedOnResourceLimit(_ error) bool {
	return false
}
