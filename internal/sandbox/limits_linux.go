//go:build linux

package sandbox

import (
	"golang.org/x/sys/unix"

	"github.com/ideaforge/fab/internal/domain"
)

// applyLimits installs kernel resource ceilings on the running agent
// process: RLIMIT_AS for the memory budget and RLIMIT_CPU for the
// CPU-time budget. Failures are reported so the engine can log them, but
// the run proceeds; the wall-clock watchdog remains the backstop.
func applyLimits(pid int, budget domain.ResourceBudget) error {
	if budget.MemoryLimitMB > 0 {
		limit := uint64(budget.MemoryLimitMB) * 1024 * 1024
		rl := &unix.Rlimit{Cur: limit, Max: limit}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, rl, nil); err != nil {
			return err
		}
	}
	if budget.CPUSeconds > 0 {
		limit := uint64(budget.CPUSeconds)
		rl := &unix.Rlimit{Cur: limit, Max: limit}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, rl, nil); err != nil {
			return err
		}
	}
	return nil
}
