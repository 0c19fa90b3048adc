package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Student is the stored student identity.
type Student struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       *string    `json:"phone,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Meeting is the subset of meeting state the validator needs.
type Meeting struct {
	ID       string
	Title    string
	IsActive bool
}

// Enrollment links a student to a meeting.
type Enrollment struct {
	ID          string
	StudentID   string
	MeetingID   string
	AccessToken string
	HasJoined   bool
}

// Store is the persistence surface the validator runs against.
type Store interface {
	StudentByEmail(ctx context.Context, email string) (*Student, error)
	MeetingByID(ctx context.Context, id string) (*Meeting, error)
	EnrollmentByPair(ctx context.Context, studentID, meetingID string) (*Enrollment, error)
	TouchLastLogin(ctx context.Context, studentID string, at time.Time) error
}

// Repository implements Store on Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// StudentByEmail returns the student with the given email, or nil when absent.
func (r *Repository) StudentByEmail(ctx context.Context, email string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, is_active, last_login_at
		FROM students WHERE email = $1
	`, email)
	var s Student
	if err := row.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Phone, &s.IsActive, &s.LastLoginAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StudentByID returns the student with the given id, or nil when absent.
func (r *Repository) StudentByID(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, is_active, last_login_at
		FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Phone, &s.IsActive, &s.LastLoginAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// MeetingByID returns the meeting, or nil when absent.
func (r *Repository) MeetingByID(ctx context.Context, id string) (*Meeting, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, is_active FROM meetings WHERE id = $1
	`, id)
	var m Meeting
	if err := row.Scan(&m.ID, &m.Title, &m.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// EnrollmentByPair returns the enrollment for (student, meeting), or nil when absent.
func (r *Repository) EnrollmentByPair(ctx context.Context, studentID, meetingID string) (*Enrollment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, meeting_id, access_token, has_joined
		FROM enrollments WHERE student_id = $1 AND meeting_id = $2
	`, studentID, meetingID)
	var e Enrollment
	if err := row.Scan(&e.ID, &e.StudentID, &e.MeetingID, &e.AccessToken, &e.HasJoined); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// TouchLastLogin stamps the student's last successful validation.
func (r *Repository) TouchLastLogin(ctx context.Context, studentID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE students SET last_login_at = $2 WHERE id = $1
	`, studentID, at)
	return err
}

// CreateStudent registers a student, idempotent on email.
func (r *Repository) CreateStudent(ctx context.Context, email, firstName, lastName string, phone *string) (Student, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, email, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, first_name, last_name, phone, is_active, last_login_at
	`, uuid.NewString(), email, firstName, lastName, phone)
	var s Student
	if err := row.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Phone, &s.IsActive, &s.LastLoginAt); err != nil {
		return Student{}, err
	}
	return s, nil
}

// SetStudentActive flips a student's active flag. An inactive student may
// never validate into a meeting. Returns false when the student is unknown.
func (r *Repository) SetStudentActive(ctx context.Context, studentID string, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET is_active = $2 WHERE id = $1
	`, studentID, active)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
