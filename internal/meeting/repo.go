package meeting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Meeting is a scheduled class session.
type Meeting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	MaxStudents int        `json:"maxStudents"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Repository persists meetings and issues enrollments.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a meeting. When the random code collides with an existing
// one, the caller gets ErrCodeTaken and may retry with a fresh code.
var ErrCodeTaken = errors.New("meeting code already taken")

func (r *Repository) Create(ctx context.Context, m Meeting) (Meeting, error) {
	if m.ID == "" {
		m.ID = NewCode()
	}
	if m.MaxStudents <= 0 {
		m.MaxStudents = 30
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO meetings (id, title, description, scheduled_at, created_by, max_students)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`, m.ID, m.Title, m.Description, m.ScheduledAt, m.CreatedBy, m.MaxStudents)
	if err := row.Scan(&m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Meeting{}, ErrCodeTaken
		}
		return Meeting{}, err
	}
	m.IsActive = true
	return m, nil
}

// ByID returns a meeting, or nil when absent.
func (r *Repository) ByID(ctx context.Context, id string) (*Meeting, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, scheduled_at, created_by, max_students, is_active, created_at
		FROM meetings WHERE id = $1
	`, id)
	var m Meeting
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.ScheduledAt, &m.CreatedBy, &m.MaxStudents, &m.IsActive, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// List returns meetings newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, scheduled_at, created_by, max_students, is_active, created_at
		FROM meetings ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ScheduledAt, &m.CreatedBy, &m.MaxStudents, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetActive flips a meeting's active flag. Returns false when the meeting
// does not exist.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE meetings SET is_active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Enroll issues an enrollment for (student, meeting) with a fresh access
// token. Re-enrolling an already-enrolled pair returns the existing row id.
func (r *Repository) Enroll(ctx context.Context, studentID, meetingID string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (id, student_id, meeting_id, access_token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, meeting_id) DO UPDATE SET student_id = EXCLUDED.student_id
		RETURNING id
	`, uuid.NewString(), studentID, meetingID, uuid.NewString())
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
