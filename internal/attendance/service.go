package attendance

import (
	"context"
	"time"

	"classmeet/internal/apperr"
)

// Store is the persistence surface the tracker runs against.
type Store interface {
	ByPair(ctx context.Context, studentID, meetingID string) (*Record, error)
	UpsertJoin(ctx context.Context, studentID, meetingID string, at time.Time) (id string, rejoin bool, err error)
	MarkEnrollmentJoined(ctx context.Context, studentID, meetingID string) error
	SaveLeave(ctx context.Context, id string, leftAt time.Time, duration int, total *int, camera, mic *bool) error
}

// JoinResult reports the outcome of a join.
type JoinResult struct {
	AttendanceID string
	IsRejoin     bool
}

// LeaveResult reports the closed window's duration in whole minutes.
type LeaveResult struct {
	Duration int
}

// DeviceState carries optional camera/mic flags from the client. Nil fields
// leave the stored value untouched.
type DeviceState struct {
	CameraEnabled *bool
	MicEnabled    *bool
}

// Service maintains one attendance record per (student, meeting) pair across
// every join/leave cycle.
type Service struct {
	store Store
	// cumulative adds each closed window onto total_duration instead of
	// only keeping the last session's duration.
	cumulative bool
	now        func() time.Time
}

// NewService creates a tracker backed by a store.
func NewService(store Store, cumulative bool) *Service {
	return &Service{store: store, cumulative: cumulative, now: time.Now}
}

// RecordJoin opens the attendance window for the pair. A second join for the
// same pair updates the existing row in place (rejoin): joined_at resets and
// the open-ended left_at/duration state clears. The first join also marks the
// pair's enrollment as joined.
//
// Callers must invoke this once per genuine join event, not per render: the
// storage shape is idempotent but every call resets the open window.
func (s *Service) RecordJoin(ctx context.Context, studentID, meetingID string) (JoinResult, error) {
	if studentID == "" || meetingID == "" {
		return JoinResult{}, apperr.New(apperr.Validation, "Missing required fields")
	}

	id, rejoin, err := s.store.UpsertJoin(ctx, studentID, meetingID, s.now().UTC())
	if err != nil {
		return JoinResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}

	if !rejoin {
		if err := s.store.MarkEnrollmentJoined(ctx, studentID, meetingID); err != nil {
			return JoinResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
		}
	}

	return JoinResult{AttendanceID: id, IsRejoin: rejoin}, nil
}

// RecordLeave closes the window opened by the most recent join. Duration is
// floor((now - joined_at) / 1m): a student who rejoined gets the duration of
// the last session, not a cumulative total, unless cumulative mode is on.
func (s *Service) RecordLeave(ctx context.Context, studentID, meetingID string, dev DeviceState) (LeaveResult, error) {
	if studentID == "" || meetingID == "" {
		return LeaveResult{}, apperr.New(apperr.Validation, "Missing required fields")
	}

	rec, err := s.store.ByPair(ctx, studentID, meetingID)
	if err != nil {
		return LeaveResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if rec == nil {
		return LeaveResult{}, apperr.New(apperr.NotFound, "Attendance record not found")
	}

	leftAt := s.now().UTC()
	duration := int(leftAt.Sub(rec.JoinedAt) / time.Minute)
	if duration < 0 {
		duration = 0
	}

	var total *int
	if s.cumulative {
		sum := duration
		if rec.TotalDuration != nil {
			sum += *rec.TotalDuration
		}
		total = &sum
	}

	if err := s.store.SaveLeave(ctx, rec.ID, leftAt, duration, total, dev.CameraEnabled, dev.MicEnabled); err != nil {
		return LeaveResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}

	return LeaveResult{Duration: duration}, nil
}
