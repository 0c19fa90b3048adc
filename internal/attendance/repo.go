package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is one attendance row per (student, meeting) pair.
type Record struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"studentId"`
	MeetingID     string     `json:"meetingId"`
	JoinedAt      time.Time  `json:"joinedAt"`
	LeftAt        *time.Time `json:"leftAt,omitempty"`
	Duration      *int       `json:"duration,omitempty"`
	TotalDuration *int       `json:"totalDuration,omitempty"`
	CameraEnabled *bool      `json:"cameraEnabled,omitempty"`
	MicEnabled    *bool      `json:"micEnabled,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ByPair returns the attendance row for (student, meeting), or nil when absent.
func (r *Repository) ByPair(ctx context.Context, studentID, meetingID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, meeting_id, joined_at, left_at, duration, total_duration,
		       camera_enabled, mic_enabled, created_at, updated_at
		FROM attendances
		WHERE student_id = $1 AND meeting_id = $2
	`, studentID, meetingID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.MeetingID, &rec.JoinedAt, &rec.LeftAt,
		&rec.Duration, &rec.TotalDuration, &rec.CameraEnabled, &rec.MicEnabled,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// UpsertJoin opens (or reopens) the attendance window for the pair. The
// unique index on (student_id, meeting_id) makes concurrent joins for the
// same pair collapse onto one row; xmax = 0 distinguishes a fresh insert
// from a conflict update.
func (r *Repository) UpsertJoin(ctx context.Context, studentID, meetingID string, at time.Time) (string, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendances (id, student_id, meeting_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, meeting_id) DO UPDATE SET
			joined_at = EXCLUDED.joined_at,
			left_at   = NULL,
			duration  = NULL,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`, uuid.NewString(), studentID, meetingID, at)
	var id string
	var inserted bool
	if err := row.Scan(&id, &inserted); err != nil {
		return "", false, err
	}
	return id, !inserted, nil
}

// MarkEnrollmentJoined flips has_joined on the pair's enrollment.
func (r *Repository) MarkEnrollmentJoined(ctx context.Context, studentID, meetingID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE enrollments SET has_joined = TRUE
		WHERE student_id = $1 AND meeting_id = $2
	`, studentID, meetingID)
	return err
}

// SaveLeave closes the attendance window. Device flags only overwrite when
// supplied; COALESCE keeps the stored value otherwise.
func (r *Repository) SaveLeave(ctx context.Context, id string, leftAt time.Time, duration int, total *int, camera, mic *bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendances SET
			left_at        = $2,
			duration       = $3,
			total_duration = COALESCE($4, total_duration),
			camera_enabled = COALESCE($5, camera_enabled),
			mic_enabled    = COALESCE($6, mic_enabled),
			updated_at     = NOW()
		WHERE id = $1
	`, id, leftAt, duration, total, camera, mic)
	return err
}

// Count returns the number of attendance rows.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendances`).Scan(&n)
	return n, err
}
