package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"classmeet/internal/attendance"
	"classmeet/internal/auth"
	"classmeet/internal/callhost"
	"classmeet/internal/config"
	"classmeet/internal/dashboard"
	"classmeet/internal/enrollment"
	"classmeet/internal/httpapi"
	"classmeet/internal/httpmiddleware"
	"classmeet/internal/lobby"
	"classmeet/internal/meeting"
	"classmeet/internal/queue"
	"classmeet/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classmeet:presence")
	}

	enrollRepo := enrollment.NewRepository(db.Client)
	attendRepo := attendance.NewRepository(db.Client)
	meetingRepo := meeting.NewRepository(db.Client)
	adminRepo := auth.NewRepository(db.Client)

	provider := callhost.New(cfg.CallHostURL, cfg.CallHostAPIKey, cfg.CallHostSkip)
	if !cfg.CallHostSkip {
		if err := provider.Health(context.Background()); err != nil {
			log.Printf("warning: call host not reachable: %v", err)
		}
	}

	deps := httpapi.Deps{
		Cfg:       cfg,
		Validator: enrollment.NewService(enrollRepo),
		Tracker:   attendance.NewService(attendRepo, cfg.AttendanceCumulative),
		Students:  enrollRepo,
		Meetings:  meetingRepo,
		Dashboard: dashboard.NewService(dashboard.NewRepository(db.Client), dashboard.NewRedisCache(redisClient.Client), cfg.DashboardCacheTTL),
		Resolver:  lobby.NewResolver(provider),
		Auth:      auth.NewAuthenticator(adminRepo, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL),
		Queue:     q,
		Redis:     redisClient,
		DB:        db,
		Limiter:   httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.New(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
