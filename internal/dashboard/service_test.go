package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"classmeet/internal/apperr"
)

type fakeStore struct {
	meetings    []MeetingSummary
	active      int
	students    int
	attendances int
	calls       int
	err         error
}

func (f *fakeStore) RecentMeetings(_ context.Context, limit int) ([]MeetingSummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.meetings) > limit {
		return f.meetings[:limit], nil
	}
	return f.meetings, nil
}

func (f *fakeStore) CountMeetings(_ context.Context) (int, error) {
	f.calls++
	return len(f.meetings), f.err
}

func (f *fakeStore) CountActiveMeetings(_ context.Context) (int, error) {
	f.calls++
	return f.active, f.err
}

func (f *fakeStore) CountStudents(_ context.Context) (int, error) {
	f.calls++
	return f.students, f.err
}

func (f *fakeStore) CountAttendances(_ context.Context) (int, error) {
	f.calls++
	return f.attendances, f.err
}

type fakeCache struct {
	entries map[string][]byte
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.entries[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.sets++
	c.entries[key] = value
	return nil
}

func seededStore() *fakeStore {
	return &fakeStore{
		meetings: []MeetingSummary{
			{ID: "abc-defg-hij", Title: "Demo Class", IsActive: true, EnrollmentCount: 3, AttendanceCount: 2},
			{ID: "old-clas-xyz", Title: "Old Class", IsActive: false, EnrollmentCount: 5, AttendanceCount: 5},
		},
		active:      1,
		students:    3,
		attendances: 7,
	}
}

func TestOverviewStats(t *testing.T) {
	store := seededStore()
	svc := NewService(store, nil, 0)

	out, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, out.Stats.TotalMeetings)
	assert.Equal(t, 1, out.Stats.ActiveMeetings)
	assert.LessOrEqual(t, out.Stats.ActiveMeetings, out.Stats.TotalMeetings)
	assert.Equal(t, 3, out.Stats.TotalStudents)
	assert.Equal(t, store.attendances, out.Stats.TotalAttendances)
	assert.Len(t, out.Meetings, 2)
	assert.Equal(t, 3, out.Meetings[0].EnrollmentCount)
}

func TestOverviewEmptyStore(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, 0)

	out, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, out.Meetings)
	assert.Empty(t, out.Meetings)
	assert.Equal(t, Stats{}, out.Stats)
}

func TestOverviewCapsRecentMeetings(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < recentMeetings+5; i++ {
		store.meetings = append(store.meetings, MeetingSummary{ID: "abc-defg-hij"})
	}
	svc := NewService(store, nil, 0)

	out, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Len(t, out.Meetings, recentMeetings)
	assert.Equal(t, recentMeetings+5, out.Stats.TotalMeetings)
}

func TestOverviewServedFromCache(t *testing.T) {
	store := seededStore()
	cache := newFakeCache()
	svc := NewService(store, cache, 15*time.Second)

	first, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	queried := store.calls

	// Mutate the store; while the TTL holds the cached payload wins and
	// the store is not queried again.
	store.attendances = 99
	second, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, queried, store.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestOverviewSkipsCacheWhenDisabled(t *testing.T) {
	store := seededStore()
	cache := newFakeCache()
	svc := NewService(store, cache, 0)

	_, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, cache.sets)

	store.attendances = 99
	out, err := svc.Overview(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 99, out.Stats.TotalAttendances)
}

func TestOverviewStoreError(t *testing.T) {
	store := seededStore()
	store.err = errors.New("pq: connection refused")
	svc := NewService(store, nil, 0)

	_, err := svc.Overview(context.Background())
	assert.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Equal(t, "Failed to fetch dashboard data", apperr.MessageOf(err))
}
