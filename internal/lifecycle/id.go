package lifecycle

import (
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/ideaforge/fab/internal/constants"
)

// idSuffixLen is the number of hex characters appended to the type prefix.
// 12 characters of a random UUID keeps ids short enough to read while
// making collisions negligible; the store rejects duplicates regardless.
const idSuffixLen = 12

// NewID generates a globally unique artifact id for the given type,
// e.g. "chunk-3f9a0c12b47d". IDs are immutable once assigned.
func NewID(t constants.ArtifactType) string {
	u := uuid.New()
	return t.IDPrefix() + hex.EncodeToString(u[:])[:idSuffixLen]
}
