package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nbsync/sync-server-go/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, code, presenterID string) (*model.Session, error)
	FindByCode(ctx context.Context, code string) (*model.Session, error)
	End(ctx context.Context, code string) error
	Touch(ctx context.Context, code string) error
	AddMember(ctx context.Context, code, followerID string) error
	IsMember(ctx context.Context, code, followerID string) (bool, error)
	ListMembers(ctx context.Context, code string) ([]model.Member, error)
	SetUnitPermission(ctx context.Context, code, unitID string, allowed bool) error
	GetUnitPermission(ctx context.Context, code, unitID string) (bool, error)
	EndIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	CountActive(ctx context.Context) (int, error)
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, code, presenterID string) (*model.Session, error) {
	var s model.Session
	err := r.db.GetContext(ctx, &s, `
		INSERT INTO sessions (code, presenter_id, status)
		VALUES ($1, $2, 'active')
		RETURNING *
	`, code, presenterID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	var s model.Session
	err := r.db.GetContext(ctx, &s, `
		SELECT * FROM sessions WHERE code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// End transitions a session to ended. The transition is terminal; the
// conditional WHERE makes concurrent End calls idempotent.
func (r *sessionRepo) End(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'ended',
			ended_at = NOW()
		WHERE code = $1 AND status = 'active'
	`, code)
	return err
}

func (r *sessionRepo) Touch(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = NOW() WHERE code = $1
	`, code)
	return err
}

// AddMember is idempotent: re-joining is a no-op, not an error.
func (r *sessionRepo) AddMember(ctx context.Context, code, followerID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_members (session_code, follower_id)
		VALUES ($1, $2)
		ON CONFLICT (session_code, follower_id) DO NOTHING
	`, code, followerID)
	return err
}

func (r *sessionRepo) IsMember(ctx context.Context, code, followerID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM session_members
			WHERE session_code = $1 AND follower_id = $2
		)
	`, code, followerID)
	return exists, err
}

func (r *sessionRepo) ListMembers(ctx context.Context, code string) ([]model.Member, error) {
	var members []model.Member
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM session_members
		WHERE session_code = $1
		ORDER BY joined_at ASC
	`, code)
	return members, err
}

func (r *sessionRepo) SetUnitPermission(ctx context.Context, code, unitID string, allowed bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_unit_permissions (session_code, unit_id, allowed)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_code, unit_id) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			updated_at = NOW()
	`, code, unitID, allowed)
	return err
}

// GetUnitPermission defaults to false when no row exists: a unit is not
// syncable until the presenter enables it.
func (r *sessionRepo) GetUnitPermission(ctx context.Context, code, unitID string) (bool, error) {
	var allowed bool
	err := r.db.GetContext(ctx, &allowed, `
		SELECT allowed FROM session_unit_permissions
		WHERE session_code = $1 AND unit_id = $2
	`, code, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return allowed, err
}

func (r *sessionRepo) EndIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'ended',
			ended_at = NOW()
		WHERE status = 'active' AND last_activity_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteEndedBefore removes ended session rows past the retention window and
// returns their codes so the caller can purge the matching ledger entries.
func (r *sessionRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var codes []string
	err := r.db.SelectContext(ctx, &codes, `
		DELETE FROM sessions
		WHERE status = 'ended' AND ended_at < $1
		RETURNING code
	`, cutoff)
	return codes, err
}

func (r *sessionRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions WHERE status = 'active'
	`)
	return count, err
}
