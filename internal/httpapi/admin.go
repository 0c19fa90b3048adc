package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classmeet/internal/apperr"
	"classmeet/internal/auth"
	"classmeet/internal/meeting"
)

func (d Deps) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	session, err := d.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.Forbidden {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt.Unix(),
		"admin": gin.H{
			"email": session.Admin.Email,
			"name":  session.Admin.Name,
			"role":  session.Admin.Role,
		},
	})
}

func (d Deps) getDashboard(c *gin.Context) {
	overview, err := d.Dashboard.Overview(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (d Deps) listMeetings(c *gin.Context) {
	meetings, err := d.Meetings.List(c.Request.Context(), 50)
	if err != nil {
		log.Printf("list meetings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if meetings == nil {
		meetings = []meeting.Meeting{}
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

func (d Deps) createMeeting(c *gin.Context) {
	var req struct {
		Title       string     `json:"title" binding:"required"`
		Description *string    `json:"description"`
		ScheduledAt *time.Time `json:"scheduledAt"`
		MaxStudents int        `json:"maxStudents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	claims := c.MustGet("admin").(auth.Claims)
	m := meeting.Meeting{
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		CreatedBy:   claims.Email,
		MaxStudents: req.MaxStudents,
	}

	created, err := d.Meetings.Create(c.Request.Context(), m)
	for attempts := 0; errors.Is(err, meeting.ErrCodeTaken) && attempts < 3; attempts++ {
		m.ID = meeting.NewCode()
		created, err = d.Meetings.Create(c.Request.Context(), m)
	}
	if err != nil {
		log.Printf("create meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "meeting": created})
}

func (d Deps) deactivateMeeting(c *gin.Context) {
	ok, err := d.Meetings.SetActive(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		log.Printf("deactivate meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (d Deps) enrollStudent(c *gin.Context) {
	var req struct {
		StudentID string `json:"studentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	meetingID := c.Param("id")

	m, err := d.Meetings.ByID(c.Request.Context(), meetingID)
	if err != nil {
		log.Printf("enroll lookup meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return
	}

	s, err := d.Students.StudentByID(c.Request.Context(), req.StudentID)
	if err != nil {
		log.Printf("enroll lookup student: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found. Please contact your instructor."})
		return
	}

	enrollmentID, err := d.Meetings.Enroll(c.Request.Context(), req.StudentID, meetingID)
	if err != nil {
		log.Printf("enroll: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "enrollmentId": enrollmentID})
}

func (d Deps) createStudent(c *gin.Context) {
	var req struct {
		Email     string  `json:"email" binding:"required"`
		FirstName string  `json:"firstName" binding:"required"`
		LastName  string  `json:"lastName" binding:"required"`
		Phone     *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	s, err := d.Students.CreateStudent(c.Request.Context(), req.Email, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		log.Printf("create student: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "student": s})
}

func (d Deps) setStudentActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := d.Students.SetStudentActive(c.Request.Context(), c.Param("id"), active)
		if err != nil {
			log.Printf("set student active: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found. Please contact your instructor."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
