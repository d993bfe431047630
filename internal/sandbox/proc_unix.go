//go:build unix

package sandbox

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureProcAttr places the agent process in its own process group so
// the watchdog can terminate the whole tree in one signal.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree forcibly terminates the process and everything it
// spawned. Termination errors are returned for logging but the watchdog
// proceeds regardless.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative pid signals the whole process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		// Fall back to the single process if the group is already gone.
		return cmd.Process.Kill()
	}
	return nil
}

// exitedOnResourceLimit reports whether the process died from a kernel
// enforced resource ceiling: SIGXCPU for the CPU-time budget, SIGKILL
// from the OOM killer for the memory ceiling.
func exitedOnResourceLimit(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return false
	}
	return ws.Signal() == syscall.SIGXCPU || ws.Signal() == syscall.SIGKILL
}
