package store

import "context"

// Schema statements are idempotent so they can run on every startup.
// The unique indexes on (student_id, meeting_id) are load-bearing: they are
// what makes concurrent join attempts for the same pair resolve to one row.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'admin',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		phone         TEXT,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS meetings (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT,
		scheduled_at TIMESTAMPTZ,
		created_by   TEXT NOT NULL,
		max_students INT NOT NULL DEFAULT 30,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id           TEXT PRIMARY KEY,
		student_id   TEXT NOT NULL REFERENCES students(id),
		meeting_id   TEXT NOT NULL REFERENCES meetings(id),
		access_token TEXT NOT NULL,
		has_joined   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, meeting_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attendances (
		id             TEXT PRIMARY KEY,
		student_id     TEXT NOT NULL REFERENCES students(id),
		meeting_id     TEXT NOT NULL REFERENCES meetings(id),
		joined_at      TIMESTAMPTZ NOT NULL,
		left_at        TIMESTAMPTZ,
		duration       INT,
		total_duration INT,
		camera_enabled BOOLEAN,
		mic_enabled    BOOLEAN,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, meeting_id)
	)`,
	`CREATE TABLE IF NOT EXISTS presence_events (
		id          BIGSERIAL PRIMARY KEY,
		student_id  TEXT NOT NULL,
		meeting_id  TEXT NOT NULL,
		kind        TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_created_at ON meetings (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_presence_events_pair ON presence_events (meeting_id, student_id)`,
}

// EnsureSchema creates tables and indexes if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
