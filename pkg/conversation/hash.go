package conversation

import (
	"crypto/sha256"
	"encoding/hex"
)

// workspaceHash derives a short, stable identifier for a workspace or
// conversation from an arbitrary seed string (a path, or a composite
// key when no natural ID is available).
func workspaceHash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
