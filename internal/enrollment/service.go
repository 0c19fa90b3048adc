package enrollment

import (
	"context"
	"log"
	"strings"
	"time"

	"classmeet/internal/apperr"
)

// Result is what a successful validation hands back to the lobby flow.
type Result struct {
	StudentID    string
	EnrollmentID string
	Student      Student
}

// Service validates that a student may enter a meeting.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a validator backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Validate checks student, meeting, and enrollment in order, each step a
// distinct failure. On success it stamps the student's last login.
//
// The submitted first/last name are accepted as presentation values and are
// not checked against the stored record; the stored names are returned so the
// caller can display authoritative values.
func (s *Service) Validate(ctx context.Context, email, firstName, lastName, meetingID string) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	student, err := s.store.StudentByEmail(ctx, email)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if student == nil {
		return Result{}, apperr.New(apperr.NotFound, "Student not found. Please contact your instructor.")
	}
	if !student.IsActive {
		return Result{}, apperr.New(apperr.Forbidden, "Your account is inactive. Please contact your instructor.")
	}

	meeting, err := s.store.MeetingByID(ctx, meetingID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if meeting == nil {
		return Result{}, apperr.New(apperr.NotFound, "Class not found")
	}
	if !meeting.IsActive {
		return Result{}, apperr.New(apperr.Forbidden, "This class is no longer active")
	}

	enr, err := s.store.EnrollmentByPair(ctx, student.ID, meetingID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if enr == nil {
		return Result{}, apperr.New(apperr.Forbidden, "You are not enrolled in this class. Please contact your instructor.")
	}

	if firstName != student.FirstName || lastName != student.LastName {
		log.Printf("validate: submitted name %q %q differs from stored record for %s", firstName, lastName, student.ID)
	}

	if err := s.store.TouchLastLogin(ctx, student.ID, s.now().UTC()); err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}

	return Result{StudentID: student.ID, EnrollmentID: enr.ID, Student: *student}, nil
}
