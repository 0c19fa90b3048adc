package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classmeet/internal/apperr"
	"classmeet/internal/attendance"
	"classmeet/internal/lobby"
	"classmeet/internal/meeting"
	"classmeet/internal/metrics"
	"classmeet/internal/queue"
)

// statusFor maps an error kind to its HTTP status. Internal detail never
// reaches the client; it is logged where the error is handled.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal || kind == apperr.Upstream {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(statusFor(kind), gin.H{"error": apperr.MessageOf(err)})
}

func (d Deps) validateStudent(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		FirstName string `json:"firstName" binding:"required"`
		LastName  string `json:"lastName" binding:"required"`
		MeetingID string `json:"meetingId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := d.Validator.Validate(c.Request.Context(), req.Email, req.FirstName, req.LastName, req.MeetingID)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(apperr.KindOf(err).String()).Inc()
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"studentId":    res.StudentID,
		"enrollmentId": res.EnrollmentID,
		"student": gin.H{
			"firstName": res.Student.FirstName,
			"lastName":  res.Student.LastName,
			"email":     res.Student.Email,
		},
	})
}

func (d Deps) recordJoin(c *gin.Context) {
	var req struct {
		StudentID string `json:"studentId" binding:"required"`
		MeetingID string `json:"meetingId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := d.Tracker.RecordJoin(c.Request.Context(), req.StudentID, req.MeetingID)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.Joins.WithLabelValues(strconv.FormatBool(res.IsRejoin)).Inc()
	d.publish(c, queue.PresenceEvent{
		Kind: "join", StudentID: req.StudentID, MeetingID: req.MeetingID, OccurredAt: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"attendanceId": res.AttendanceID,
		"isRejoin":     res.IsRejoin,
	})
}

func (d Deps) recordLeave(c *gin.Context) {
	var req struct {
		StudentID     string `json:"studentId" binding:"required"`
		MeetingID     string `json:"meetingId" binding:"required"`
		CameraEnabled *bool  `json:"cameraEnabled"`
		MicEnabled    *bool  `json:"micEnabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := d.Tracker.RecordLeave(c.Request.Context(), req.StudentID, req.MeetingID, attendance.DeviceState{
		CameraEnabled: req.CameraEnabled,
		MicEnabled:    req.MicEnabled,
	})
	if err != nil {
		fail(c, err)
		return
	}
	metrics.Leaves.Inc()
	d.publish(c, queue.PresenceEvent{
		Kind: "leave", StudentID: req.StudentID, MeetingID: req.MeetingID, OccurredAt: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "duration": res.Duration})
}

// publish pushes a presence event for the audit worker. Publish failures are
// logged, never surfaced: the attendance write already succeeded.
func (d Deps) publish(c *gin.Context, evt queue.PresenceEvent) {
	if d.Queue == nil {
		return
	}
	if err := d.Queue.Publish(c.Request.Context(), evt); err != nil {
		log.Printf("presence event publish failed: %v", err)
	}
}

func (d Deps) resolveLobby(c *gin.Context) {
	var req struct {
		MeetingID  string `json:"meetingId" binding:"required"`
		NewMeeting bool   `json:"newMeeting"`
		StudentID  string `json:"studentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if !meeting.CodeRegex.MatchString(req.MeetingID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class code."})
		return
	}

	caller, ok := d.callerFrom(c, req.StudentID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := d.Resolver.Resolve(c.Request.Context(), caller, req.MeetingID, req.NewMeeting)
	metrics.LobbyResolutions.WithLabelValues(string(res.State)).Inc()
	if err != nil {
		if apperr.KindOf(err) == apperr.Validation {
			fail(c, err)
			return
		}
		log.Printf("lobby resolve %s: %v", req.MeetingID, err)
		// Terminal state for this visit; the client redirects to the
		// end-of-meeting screen.
		c.JSON(http.StatusOK, gin.H{"success": false, "state": res.State, "error": apperr.MessageOf(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"state":        res.State,
		"created":      res.Created,
		"participants": res.Participants,
	})
}

func (d Deps) joinLobby(c *gin.Context) {
	var req struct {
		MeetingID string `json:"meetingId" binding:"required"`
		StudentID string `json:"studentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	caller, ok := d.callerFrom(c, req.StudentID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if err := d.Resolver.Join(c.Request.Context(), caller, req.MeetingID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// callerFrom builds the tagged caller variant: an admin when a valid bearer
// session is presented, otherwise a student identified by studentId.
func (d Deps) callerFrom(c *gin.Context, studentID string) (lobby.Caller, bool) {
	if claims, err := d.Auth.SessionFrom(c.GetHeader("Authorization")); err == nil {
		return lobby.Caller{Kind: lobby.CallerAdmin, ID: claims.Email}, true
	}
	if studentID == "" {
		return lobby.Caller{}, false
	}
	return lobby.Caller{Kind: lobby.CallerStudent, ID: studentID}, true
}
