package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"classmeet/internal/attendance"
	"classmeet/internal/auth"
	"classmeet/internal/callhost"
	"classmeet/internal/config"
	"classmeet/internal/dashboard"
	"classmeet/internal/enrollment"
	"classmeet/internal/lobby"
	"classmeet/internal/metrics"
	"classmeet/internal/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// In-memory stores backing the services under test.

type fakeEnrollStore struct {
	students    map[string]*enrollment.Student
	meetings    map[string]*enrollment.Meeting
	enrollments map[string]*enrollment.Enrollment
}

func (f *fakeEnrollStore) StudentByEmail(_ context.Context, email string) (*enrollment.Student, error) {
	return f.students[email], nil
}

func (f *fakeEnrollStore) MeetingByID(_ context.Context, id string) (*enrollment.Meeting, error) {
	return f.meetings[id], nil
}

func (f *fakeEnrollStore) EnrollmentByPair(_ context.Context, studentID, meetingID string) (*enrollment.Enrollment, error) {
	return f.enrollments[studentID+"|"+meetingID], nil
}

func (f *fakeEnrollStore) TouchLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type fakeAttendStore struct {
	records map[string]*attendance.Record
}

func (f *fakeAttendStore) ByPair(_ context.Context, studentID, meetingID string) (*attendance.Record, error) {
	return f.records[studentID+"|"+meetingID], nil
}

func (f *fakeAttendStore) UpsertJoin(_ context.Context, studentID, meetingID string, at time.Time) (string, bool, error) {
	k := studentID + "|" + meetingID
	if rec, ok := f.records[k]; ok {
		rec.JoinedAt = at
		rec.LeftAt = nil
		rec.Duration = nil
		return rec.ID, true, nil
	}
	rec := &attendance.Record{ID: uuid.NewString(), StudentID: studentID, MeetingID: meetingID, JoinedAt: at}
	f.records[k] = rec
	return rec.ID, false, nil
}

func (f *fakeAttendStore) MarkEnrollmentJoined(_ context.Context, _, _ string) error { return nil }

func (f *fakeAttendStore) SaveLeave(_ context.Context, id string, leftAt time.Time, duration int, _ *int, _, _ *bool) error {
	for _, rec := range f.records {
		if rec.ID == id {
			rec.LeftAt = &leftAt
			rec.Duration = &duration
		}
	}
	return nil
}

type fakeDashStore struct {
	meetings    []dashboard.MeetingSummary
	active      int
	students    int
	attendances int
}

func (f *fakeDashStore) RecentMeetings(_ context.Context, limit int) ([]dashboard.MeetingSummary, error) {
	if len(f.meetings) > limit {
		return f.meetings[:limit], nil
	}
	return f.meetings, nil
}

func (f *fakeDashStore) CountMeetings(_ context.Context) (int, error) {
	return len(f.meetings), nil
}

func (f *fakeDashStore) CountActiveMeetings(_ context.Context) (int, error) { return f.active, nil }
func (f *fakeDashStore) CountStudents(_ context.Context) (int, error)       { return f.students, nil }
func (f *fakeDashStore) CountAttendances(_ context.Context) (int, error)    { return f.attendances, nil }

type fakeAdminStore struct {
	admins map[string]*auth.Admin
}

func (f *fakeAdminStore) AdminByEmail(_ context.Context, email string) (*auth.Admin, error) {
	return f.admins[email], nil
}

func testRouter(t *testing.T) (*gin.Engine, *callhost.Client) {
	t.Helper()

	enrollStore := &fakeEnrollStore{
		students: map[string]*enrollment.Student{
			"jane@example.com": {ID: "stu-1", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith", IsActive: true},
			"solo@example.com": {ID: "stu-2", Email: "solo@example.com", FirstName: "Solo", LastName: "Learner", IsActive: true},
		},
		meetings: map[string]*enrollment.Meeting{
			"abc-defg-hij": {ID: "abc-defg-hij", Title: "Demo Class", IsActive: true},
		},
		enrollments: map[string]*enrollment.Enrollment{
			"stu-1|abc-defg-hij": {ID: "enr-1", StudentID: "stu-1", MeetingID: "abc-defg-hij"},
		},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("Admin123!"), bcrypt.MinCost)
	assert.NoError(t, err)
	adminStore := &fakeAdminStore{admins: map[string]*auth.Admin{
		"admin@classmeet.local": {ID: "adm-1", Email: "admin@classmeet.local", Name: "Site Admin", PasswordHash: string(hash), Role: "super_admin"},
	}}

	cfg := config.App{
		JWTIssuer:       "classmeet-test",
		JWTSigningKey:   "test-signing-key",
		SessionTTL:      time.Hour,
		RateLimitPerMin: 100000,
	}

	dashStore := &fakeDashStore{
		meetings: []dashboard.MeetingSummary{
			{ID: "abc-defg-hij", Title: "Demo Class", IsActive: true, EnrollmentCount: 1, AttendanceCount: 1},
		},
		active: 1, students: 2, attendances: 1,
	}

	provider := callhost.New("", "", true)
	deps := Deps{
		Cfg:       cfg,
		Validator: enrollment.NewService(enrollStore),
		Tracker:   attendance.NewService(&fakeAttendStore{records: make(map[string]*attendance.Record)}, false),
		Dashboard: dashboard.NewService(dashStore, nil, 0),
		Resolver:  lobby.NewResolver(provider),
		Auth:      auth.NewAuthenticator(adminStore, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL),
		Queue:     queue.NewInMemory(16),
	}
	return New(deps), provider
}

func doJSON(r *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func loginAdmin(t *testing.T, r *gin.Engine) string {
	t.Helper()
	rec := doJSON(r, http.MethodPost, "/admin/login", gin.H{
		"email": "admin@classmeet.local", "password": "Admin123!",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	return decode(t, rec)["token"].(string)
}

func TestValidateMissingFields(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/student/validate", gin.H{"email": "jane@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode(t, rec)["error"])
}

func TestValidateSuccess(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/student/validate", gin.H{
		"email": "jane@example.com", "firstName": "Jane", "lastName": "Smith", "meetingId": "abc-defg-hij",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "stu-1", body["studentId"])
	assert.Equal(t, "enr-1", body["enrollmentId"])
	student := body["student"].(map[string]any)
	assert.Equal(t, "jane@example.com", student["email"])
}

func TestValidateUnenrolled(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/student/validate", gin.H{
		"email": "solo@example.com", "firstName": "Solo", "lastName": "Learner", "meetingId": "abc-defg-hij",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are not enrolled in this class. Please contact your instructor.", decode(t, rec)["error"])
}

func TestAttendanceJoinLeaveFlow(t *testing.T) {
	r, _ := testRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/attendance", gin.H{"studentId": "stu-1", "meetingId": "abc-defg-hij"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	first := decode(t, rec)
	assert.Equal(t, true, first["success"])
	assert.Equal(t, false, first["isRejoin"])
	assert.NotEmpty(t, first["attendanceId"])

	rec = doJSON(r, http.MethodPost, "/api/attendance", gin.H{"studentId": "stu-1", "meetingId": "abc-defg-hij"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	second := decode(t, rec)
	assert.Equal(t, true, second["isRejoin"])
	assert.Equal(t, first["attendanceId"], second["attendanceId"])

	camera := true
	rec = doJSON(r, http.MethodPatch, "/api/attendance", gin.H{
		"studentId": "stu-1", "meetingId": "abc-defg-hij", "cameraEnabled": camera,
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	left := decode(t, rec)
	assert.Equal(t, true, left["success"])
	assert.Equal(t, float64(0), left["duration"])
}

func TestAttendanceLeaveWithoutJoin(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPatch, "/api/attendance", gin.H{"studentId": "stu-9", "meetingId": "abc-defg-hij"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Attendance record not found", decode(t, rec)["error"])
}

func TestAttendanceMissingFields(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/attendance", gin.H{"studentId": "stu-1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(r, http.MethodPatch, "/api/attendance", gin.H{"meetingId": "abc-defg-hij"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLobbyResolveAdminNewMeeting(t *testing.T) {
	r, _ := testRouter(t)
	token := loginAdmin(t, r)

	rec := doJSON(r, http.MethodPost, "/api/lobby/resolve", gin.H{
		"meetingId": "abc-defg-hij", "newMeeting": true,
	}, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, true, body["created"])
	assert.Empty(t, body["participants"])
}

func TestLobbyResolveStudentUnknownMeeting(t *testing.T) {
	r, _ := testRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/lobby/resolve", gin.H{
		"meetingId": "abc-defg-hij", "studentId": "stu-1", "newMeeting": true,
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "error", body["state"])
	assert.Equal(t, "meeting unavailable", body["error"])
}

func TestLobbyResolveStudentJoinsExisting(t *testing.T) {
	r, provider := testRouter(t)
	assert.NoError(t, provider.CreateSession(context.Background(), "abc-defg-hij", nil))

	rec := doJSON(r, http.MethodPost, "/api/lobby/resolve", gin.H{
		"meetingId": "abc-defg-hij", "studentId": "stu-1",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["state"])

	rec = doJSON(r, http.MethodPost, "/api/lobby/join", gin.H{
		"meetingId": "abc-defg-hij", "studentId": "stu-1",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLobbyResolveInvalidCode(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/lobby/resolve", gin.H{
		"meetingId": "not-a-code!", "studentId": "stu-1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid class code.", decode(t, rec)["error"])
}

func TestLobbyResolveRequiresCallerIdentity(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/api/lobby/resolve", gin.H{"meetingId": "abc-defg-hij"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardRequiresAuth(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodGet, "/admin/dashboard", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode(t, rec)["error"])
}

func TestDashboardOverview(t *testing.T) {
	r, _ := testRouter(t)
	token := loginAdmin(t, r)

	rec := doJSON(r, http.MethodGet, "/admin/dashboard", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["totalMeetings"])
	assert.Equal(t, float64(1), stats["activeMeetings"])
	assert.Equal(t, float64(2), stats["totalStudents"])
	assert.Equal(t, float64(1), stats["totalAttendances"])
	meetings := body["meetings"].([]any)
	assert.Len(t, meetings, 1)
	assert.Equal(t, "Demo Class", meetings[0].(map[string]any)["title"])
}

func TestValidateFailureCountsByKind(t *testing.T) {
	r, _ := testRouter(t)
	counter := metrics.ValidationFailures.WithLabelValues("forbidden")
	before := testutil.ToFloat64(counter)

	rec := doJSON(r, http.MethodPost, "/api/student/validate", gin.H{
		"email": "solo@example.com", "firstName": "Solo", "lastName": "Learner", "meetingId": "abc-defg-hij",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(r, http.MethodPost, "/admin/login", gin.H{
		"email": "admin@classmeet.local", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec)["error"])
}
