//go:build !linux

package sandbox

import "github.com/ideaforge/fab/internal/domain"

// applyLimits is a no-op outside Linux; only the wall-clock watchdog
// bounds the run there.
func applyLimits(_ int, _ domain.ResourceBudget) error {
	return nil
}
