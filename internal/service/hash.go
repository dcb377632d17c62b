package service

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentHash derives the storage key for a unit snapshot from its identity
// tuple. The payload is deliberately not part of the hash: pushing the same
// (unit_id, created_at) twice is idempotent, and publishing new content for
// a unit requires a fresh created_at.
func ContentHash(unitID string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(unitID + ":" + createdAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}
