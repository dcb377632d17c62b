package model

import "time"

// ContentEntry is an immutable hash-addressed payload. The hash is derived
// from (unit_id, created_at), not from the payload, so re-pushing the same
// tuple is a no-op and publishing new content requires a fresh created_at.
type ContentEntry struct {
	Hash      string    `json:"contentHash"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PendingUpdate is the latest-known pointer from a session unit to a
// content hash. It is overwritten, not appended, on each push.
type PendingUpdate struct {
	SessionCode string    `json:"sessionCode"`
	UnitID      string    `json:"unitId"`
	ContentHash string    `json:"contentHash"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Notification records that a unit changed at a point in time. The log is
// append-only so a late poller still sees that a change happened even after
// the pending update was superseded again.
type Notification struct {
	UnitID    string    `json:"unitId"`
	UpdatedAt time.Time `json:"updatedAt"`
}
