package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"classmeet/internal/config"
	"classmeet/internal/queue"
	"classmeet/internal/store"
)

// Worker consumes presence events and appends them to the audit trail.
// It only records: attendance rows are never corrected here, so a session
// killed before its leave beacon fired stays open until an admin fixes it.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classmeet:presence")
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for presence events...")
	for evt := range events {
		if evt.Kind != "join" && evt.Kind != "leave" {
			continue
		}
		_, err := db.Client.ExecContext(ctx, `
			INSERT INTO presence_events (student_id, meeting_id, kind, occurred_at)
			VALUES ($1, $2, $3, $4)
		`, evt.StudentID, evt.MeetingID, evt.Kind, evt.OccurredAt)
		if err != nil {
			log.Printf("audit insert failed for %s %s/%s: %v", evt.Kind, evt.StudentID, evt.MeetingID, err)
			continue
		}
		log.Printf("recorded %s for student %s in meeting %s", evt.Kind, evt.StudentID, evt.MeetingID)
	}

	log.Println("worker stopped")
}
