package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"classmeet/internal/apperr"
)

const recentMeetings = 20

// MeetingSummary is a meeting annotated with its enrollment and attendance
// counts.
type MeetingSummary struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	MaxStudents     int        `json:"maxStudents"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	EnrollmentCount int        `json:"enrollmentCount"`
	AttendanceCount int        `json:"attendanceCount"`
}

// Stats are the global rollup counts.
type Stats struct {
	TotalMeetings    int `json:"totalMeetings"`
	ActiveMeetings   int `json:"activeMeetings"`
	TotalStudents    int `json:"totalStudents"`
	TotalAttendances int `json:"totalAttendances"`
}

// Overview is the dashboard payload.
type Overview struct {
	Meetings []MeetingSummary `json:"meetings"`
	Stats    Stats            `json:"stats"`
}

// Store is the persistence surface the aggregator reads from.
type Store interface {
	RecentMeetings(ctx context.Context, limit int) ([]MeetingSummary, error)
	CountMeetings(ctx context.Context) (int, error)
	CountActiveMeetings(ctx context.Context) (int, error)
	CountStudents(ctx context.Context) (int, error)
	CountAttendances(ctx context.Context) (int, error)
}

// Cache holds a serialized overview for a short TTL. A Get miss is
// (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache on a redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached value, or (nil, nil) on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

// Set stores the value with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Service produces read-only rollups for the admin view. All queries run
// independently and concurrently; there is no cross-query snapshot, which is
// fine for a dashboard.
type Service struct {
	store    Store
	cache    Cache
	cacheTTL time.Duration
}

// NewService creates the aggregator. cache may be nil to disable caching.
func NewService(store Store, cache Cache, cacheTTL time.Duration) *Service {
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL}
}

const cacheKey = "classmeet:dashboard:overview"

// Overview returns the recent-meetings list and global stats, served from
// cache while the TTL holds.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && raw != nil {
			var cached Overview
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := s.store.RecentMeetings(gctx, recentMeetings)
		out.Meetings = ms
		return err
	})
	g.Go(func() (err error) {
		out.Stats.TotalMeetings, err = s.store.CountMeetings(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Stats.ActiveMeetings, err = s.store.CountActiveMeetings(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Stats.TotalStudents, err = s.store.CountStudents(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Stats.TotalAttendances, err = s.store.CountAttendances(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, apperr.Wrap(apperr.Internal, "Failed to fetch dashboard data", err)
	}
	if out.Meetings == nil {
		out.Meetings = []MeetingSummary{}
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL); err != nil {
				log.Printf("dashboard cache set failed: %v", err)
			}
		}
	}
	return out, nil
}
