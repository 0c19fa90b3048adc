package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"classmeet/internal/auth"
	"classmeet/internal/config"
	"classmeet/internal/enrollment"
	"classmeet/internal/meeting"
	"classmeet/internal/store"
)

// Seeds admins, demo students, and one demo meeting with enrollments.
// Safe to run repeatedly; every write is an upsert.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	adminRepo := auth.NewRepository(db.Client)
	admins := []struct{ email, name, password, role string }{
		{"admin@classmeet.local", "Site Admin", "Admin123!", "super_admin"},
		{"instructor@classmeet.local", "Demo Instructor", "Admin123!", "admin"},
	}
	for _, a := range admins {
		if err := adminRepo.UpsertAdmin(ctx, a.email, a.name, a.password, a.role); err != nil {
			log.Fatalf("seed admin %s failed: %v", a.email, err)
		}
		log.Printf("admin: %s (%s)", a.email, a.role)
	}

	studentRepo := enrollment.NewRepository(db.Client)
	phone := func(s string) *string { return &s }
	students := []struct {
		email, first, last string
		phone              *string
	}{
		{"test.student1@example.com", "John", "Doe", phone("555-0100")},
		{"test.student2@example.com", "Jane", "Smith", phone("555-0101")},
		{"test.student3@example.com", "Mike", "Johnson", phone("555-0102")},
	}

	meetingRepo := meeting.NewRepository(db.Client)
	scheduled := time.Now().Add(24 * time.Hour).UTC()
	demo, err := meetingRepo.Create(ctx, meeting.Meeting{
		Title:       "Demo Class",
		ScheduledAt: &scheduled,
		CreatedBy:   "instructor@classmeet.local",
		MaxStudents: 30,
	})
	if err != nil {
		log.Fatalf("seed meeting failed: %v", err)
	}
	log.Printf("meeting: %s (%s)", demo.Title, demo.ID)

	for _, s := range students {
		created, err := studentRepo.CreateStudent(ctx, s.email, s.first, s.last, s.phone)
		if err != nil {
			log.Fatalf("seed student %s failed: %v", s.email, err)
		}
		if _, err := meetingRepo.Enroll(ctx, created.ID, demo.ID); err != nil {
			log.Fatalf("seed enrollment for %s failed: %v", s.email, err)
		}
		log.Printf("student: %s %s (%s), enrolled in %s", s.first, s.last, s.email, demo.ID)
	}

	log.Println("seeding completed")
}
