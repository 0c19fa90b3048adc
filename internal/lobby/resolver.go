package lobby

import (
	"context"
	"log"
	"sync"

	"classmeet/internal/apperr"
	"classmeet/internal/callhost"
)

// State is the lobby visit state.
type State string

const (
	StateInit     State = "init"
	StateCreating State = "creating"
	StateReady    State = "ready"
	StateError    State = "error"
)

// CallerKind tags who is resolving the lobby.
type CallerKind string

const (
	CallerAdmin   CallerKind = "admin"
	CallerStudent CallerKind = "student"
)

// Caller identifies who is standing in the lobby. ID is the admin email or
// the student id; it doubles as the provider-side user id.
type Caller struct {
	Kind CallerKind
	ID   string
}

// Provider is the call-hosting surface the resolver drives.
type Provider interface {
	FetchSession(ctx context.Context, id string) (*callhost.Session, error)
	CreateSession(ctx context.Context, id string, members []callhost.Member) error
	Join(ctx context.Context, id, userID string) error
	Leave(ctx context.Context, id, userID string) error
}

// Resolution is the outcome of one lobby visit.
type Resolution struct {
	State        State                  `json:"state"`
	Created      bool                   `json:"created"`
	Participants []callhost.Participant `json:"participants"`
}

// visit tracks one caller's lobby state across resolutions.
type visit struct {
	cancel    context.CancelFunc
	meetingID string
	joined    bool
}

// Resolver decides, per lobby visit, whether the provider session exists,
// creating it only for an admin who navigated in with a brand-new meeting.
// A caller never holds two concurrent joined sessions, and a new resolution
// for the same caller supersedes an in-flight one.
type Resolver struct {
	provider Provider

	mu     sync.Mutex
	visits map[string]*visit
}

// NewResolver creates a resolver over the provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider, visits: make(map[string]*visit)}
}

// Resolve runs the lobby state machine for one visit. newMeeting marks a
// fresh "new meeting" navigation; only then, and only for an admin, does a
// provider not-found turn into a create.
func (r *Resolver) Resolve(ctx context.Context, caller Caller, meetingID string, newMeeting bool) (Resolution, error) {
	if caller.ID == "" || meetingID == "" {
		return Resolution{State: StateError}, apperr.New(apperr.Validation, "Missing required fields")
	}

	ctx, cancel, stale := r.begin(ctx, caller, meetingID)
	defer cancel()

	// Leaving a stale joined session first guarantees the caller never
	// holds two concurrent joined states.
	if stale != "" {
		if err := r.provider.Leave(ctx, stale, caller.ID); err != nil {
			log.Printf("lobby: leave of stale session %s failed: %v", stale, err)
		}
	}

	session, err := r.provider.FetchSession(ctx, meetingID)
	if err == nil {
		return Resolution{State: StateReady, Participants: session.Participants}, nil
	}

	if callhost.IsNotFound(err) && caller.Kind == CallerAdmin && newMeeting {
		// Init -> Creating -> Ready
		members := []callhost.Member{{UserID: caller.ID, Role: "host"}}
		if err := r.provider.CreateSession(ctx, meetingID, members); err != nil {
			return Resolution{State: StateError}, apperr.Wrap(apperr.Upstream, "meeting unavailable", err)
		}
		return Resolution{State: StateReady, Created: true, Participants: []callhost.Participant{}}, nil
	}

	// A student's not-found must not be upgraded to a create; it ends the
	// visit exactly like any other provider failure.
	return Resolution{State: StateError}, apperr.Wrap(apperr.Upstream, "meeting unavailable", err)
}

// Join enters the resolved session. It is idempotent: joining while already
// joined is a no-op.
func (r *Resolver) Join(ctx context.Context, caller Caller, meetingID string) error {
	r.mu.Lock()
	v, ok := r.visits[caller.ID]
	if ok && v.meetingID == meetingID && v.joined {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.provider.Join(ctx, meetingID, caller.ID); err != nil {
		if callhost.IsNotFound(err) {
			return apperr.Wrap(apperr.NotFound, "meeting unavailable", err)
		}
		return apperr.Wrap(apperr.Upstream, "meeting unavailable", err)
	}

	r.mu.Lock()
	if v, ok := r.visits[caller.ID]; ok && v.meetingID == meetingID {
		v.joined = true
	} else {
		r.visits[caller.ID] = &visit{meetingID: meetingID, joined: true, cancel: func() {}}
	}
	r.mu.Unlock()
	return nil
}

// Leave exits the caller's current session, if any.
func (r *Resolver) Leave(ctx context.Context, caller Caller) error {
	r.mu.Lock()
	v, ok := r.visits[caller.ID]
	if !ok || !v.joined {
		r.mu.Unlock()
		return nil
	}
	meetingID := v.meetingID
	v.joined = false
	r.mu.Unlock()

	return r.provider.Leave(ctx, meetingID, caller.ID)
}

// begin registers a visit, cancelling any in-flight resolution for the same
// caller so it is superseded rather than raced. It returns the visit context,
// its cancel (the caller must invoke it when the resolution finishes), and the
// meeting id of a stale joined session to leave, if any.
func (r *Resolver) begin(ctx context.Context, caller Caller, meetingID string) (context.Context, context.CancelFunc, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale string
	if prev, ok := r.visits[caller.ID]; ok {
		prev.cancel()
		if prev.joined {
			stale = prev.meetingID
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r.visits[caller.ID] = &visit{cancel: cancel, meetingID: meetingID}
	return ctx, cancel, stale
}
