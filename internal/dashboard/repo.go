package dashboard

import (
	"context"
	"database/sql"
)

// Repository implements Store on Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecentMeetings returns the newest meetings annotated with their enrollment
// and attendance counts.
func (r *Repository) RecentMeetings(ctx context.Context, limit int) ([]MeetingSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.title, m.description, m.scheduled_at, m.created_by,
		       m.max_students, m.is_active, m.created_at,
		       (SELECT COUNT(*) FROM enrollments e WHERE e.meeting_id = m.id),
		       (SELECT COUNT(*) FROM attendances a WHERE a.meeting_id = m.id)
		FROM meetings m
		ORDER BY m.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MeetingSummary
	for rows.Next() {
		var m MeetingSummary
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ScheduledAt, &m.CreatedBy,
			&m.MaxStudents, &m.IsActive, &m.CreatedAt, &m.EnrollmentCount, &m.AttendanceCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMeetings returns the total number of meetings.
func (r *Repository) CountMeetings(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM meetings`)
}

// CountActiveMeetings returns the number of active meetings.
func (r *Repository) CountActiveMeetings(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM meetings WHERE is_active = TRUE`)
}

// CountStudents returns the total number of students.
func (r *Repository) CountStudents(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM students`)
}

// CountAttendances returns the total number of attendance rows.
func (r *Repository) CountAttendances(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM attendances`)
}

func (r *Repository) count(ctx context.Context, query string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, query).Scan(&n)
	return n, err
}
