package database

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		code             TEXT PRIMARY KEY,
		presenter_id     TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'active',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at         TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status_activity
		ON sessions (status, last_activity_at)`,
	`CREATE TABLE IF NOT EXISTS session_members (
		session_code TEXT NOT NULL REFERENCES sessions(code) ON DELETE CASCADE,
		follower_id  TEXT NOT NULL,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_code, follower_id)
	)`,
	`CREATE TABLE IF NOT EXISTS session_unit_permissions (
		session_code TEXT NOT NULL REFERENCES sessions(code) ON DELETE CASCADE,
		unit_id      TEXT NOT NULL,
		allowed      BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_code, unit_id)
	)`,
}

// EnsureSchema creates the session registry tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
