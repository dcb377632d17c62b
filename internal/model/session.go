package model

import "time"

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

type Session struct {
	Code           string        `db:"code" json:"code"`
	PresenterID    string        `db:"presenter_id" json:"presenterId"`
	Status         SessionStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	LastActivityAt time.Time     `db:"last_activity_at" json:"lastActivityAt"`
	EndedAt        *time.Time    `db:"ended_at" json:"endedAt,omitempty"`
}

func (s *Session) Active() bool {
	return s.Status == SessionStatusActive
}

type Member struct {
	SessionCode string    `db:"session_code" json:"sessionCode"`
	FollowerID  string    `db:"follower_id" json:"followerId"`
	JoinedAt    time.Time `db:"joined_at" json:"joinedAt"`
}

// UnitPermission is the per-unit sync-allowed flag. A unit with no row
// defaults to not allowed.
type UnitPermission struct {
	SessionCode string    `db:"session_code" json:"sessionCode"`
	UnitID      string    `db:"unit_id" json:"unitId"`
	Allowed     bool      `db:"allowed" json:"allowed"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
