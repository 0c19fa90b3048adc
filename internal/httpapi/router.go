package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classmeet/internal/attendance"
	"classmeet/internal/auth"
	"classmeet/internal/config"
	"classmeet/internal/dashboard"
	"classmeet/internal/enrollment"
	"classmeet/internal/httpmiddleware"
	"classmeet/internal/lobby"
	"classmeet/internal/meeting"
	"classmeet/internal/queue"
	"classmeet/internal/store"
)

// Deps are the wired services the router serves.
type Deps struct {
	Cfg       config.App
	Validator *enrollment.Service
	Tracker   *attendance.Service
	Students  *enrollment.Repository
	Meetings  *meeting.Repository
	Dashboard *dashboard.Service
	Resolver  *lobby.Resolver
	Auth      *auth.Authenticator
	Queue     queue.Queue
	Redis     *store.Redis
	DB        *store.DB
	// Limiter defaults to an in-process token bucket when unset.
	Limiter httpmiddleware.Limiter
}

// New builds the gin engine with all routes and middleware.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	limiter := d.Limiter
	if limiter == nil {
		limiter = httpmiddleware.NewTokenBucket(d.Cfg.RateLimitPerMin)
	}
	r.Use(httpmiddleware.RateLimit(limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", d.healthz)

	api := r.Group("/api")
	api.POST("/student/validate", d.validateStudent)
	api.POST("/attendance", d.recordJoin)
	api.PATCH("/attendance", d.recordLeave)
	api.POST("/lobby/resolve", d.resolveLobby)
	api.POST("/lobby/join", d.joinLobby)

	r.POST("/admin/login", d.login)

	admin := r.Group("/admin", auth.AdminAuth(d.Cfg.JWTSigningKey, d.Cfg.JWTIssuer))
	admin.GET("/dashboard", d.getDashboard)
	admin.GET("/meetings", d.listMeetings)
	admin.POST("/meetings", d.createMeeting)
	admin.POST("/meetings/:id/deactivate", d.deactivateMeeting)
	admin.POST("/meetings/:id/enrollments", d.enrollStudent)
	admin.POST("/students", d.createStudent)
	admin.POST("/students/:id/deactivate", d.setStudentActive(false))
	admin.POST("/students/:id/activate", d.setStudentActive(true))

	return r
}

func (d Deps) healthz(c *gin.Context) {
	redisHealthy := d.Redis.Healthy(c.Request.Context())
	dbHealthy := d.DB != nil && d.DB.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// CORS middleware for browser requests; the leave beacon and lobby polling
// come straight from the browser.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
