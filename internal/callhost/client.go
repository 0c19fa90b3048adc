package callhost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrorKind is the closed classification of provider failures. The resolver
// depends on NotFound being distinguishable from everything else: only a
// genuine not-found may be upgraded to a create.
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindNotFound
)

// ProviderError wraps a provider failure with its classification.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Msg    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("call host error (status %d): %s", e.Status, e.Msg)
}

// IsNotFound reports whether err is a provider not-found.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindNotFound
}

// Member is a participant to seed a session with at creation.
type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Participant is a user currently in a session.
type Participant struct {
	UserID   string     `json:"user_id"`
	Name     string     `json:"name,omitempty"`
	Role     string     `json:"role,omitempty"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

// Session is the provider-side call session, keyed by the meeting id.
type Session struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
}

// Client calls the external call-hosting provider. With Skip set it runs a
// stateful in-memory mock instead, for dev and tests.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Skip    bool

	mu   sync.Mutex
	mock map[string]*Session
}

// New creates a client.
func New(baseURL, apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
		mock: make(map[string]*Session),
	}
}

// FetchSession returns the session for id, or a NotFound ProviderError.
func (c *Client) FetchSession(ctx context.Context, id string) (*Session, error) {
	if c.Skip {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.mock[id]; ok {
			cp := *s
			cp.Participants = append([]Participant(nil), s.Participants...)
			return &cp, nil
		}
		return nil, &ProviderError{Kind: KindNotFound, Status: http.StatusNotFound, Msg: "session not found"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/sessions/"+id, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: KindUpstream, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ProviderError{Kind: KindNotFound, Status: resp.StatusCode, Msg: "session not found"}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Kind: KindUpstream, Status: resp.StatusCode, Msg: string(body)}
	}

	var out Session
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Kind: KindUpstream, Status: resp.StatusCode, Msg: "decode failed: " + err.Error()}
	}
	return &out, nil
}

// CreateSession creates the session for id with initial members.
func (c *Client) CreateSession(ctx context.Context, id string, members []Member) error {
	if c.Skip {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.mock[id]; !ok {
			c.mock[id] = &Session{ID: id}
		}
		return nil
	}

	payload, _ := json.Marshal(map[string]any{"id": id, "members": members})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sessions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &ProviderError{Kind: KindUpstream, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &ProviderError{Kind: KindUpstream, Status: resp.StatusCode, Msg: string(body)}
	}
	return nil
}

// Join adds the user to the live session.
func (c *Client) Join(ctx context.Context, id, userID string) error {
	if c.Skip {
		c.mu.Lock()
		defer c.mu.Unlock()
		s, ok := c.mock[id]
		if !ok {
			return &ProviderError{Kind: KindNotFound, Status: http.StatusNotFound, Msg: "session not found"}
		}
		for _, p := range s.Participants {
			if p.UserID == userID {
				return nil
			}
		}
		now := time.Now().UTC()
		s.Participants = append(s.Participants, Participant{UserID: userID, JoinedAt: &now})
		return nil
	}
	return c.memberOp(ctx, id, userID, "join")
}

// Leave removes the user from the live session.
func (c *Client) Leave(ctx context.Context, id, userID string) error {
	if c.Skip {
		c.mu.Lock()
		defer c.mu.Unlock()
		s, ok := c.mock[id]
		if !ok {
			return nil
		}
		kept := s.Participants[:0]
		for _, p := range s.Participants {
			if p.UserID != userID {
				kept = append(kept, p)
			}
		}
		s.Participants = kept
		return nil
	}
	return c.memberOp(ctx, id, userID, "leave")
}

func (c *Client) memberOp(ctx context.Context, id, userID, op string) error {
	payload, _ := json.Marshal(map[string]string{"user_id": userID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sessions/"+id+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &ProviderError{Kind: KindUpstream, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &ProviderError{Kind: KindNotFound, Status: resp.StatusCode, Msg: "session not found"}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &ProviderError{Kind: KindUpstream, Status: resp.StatusCode, Msg: string(body)}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

// Health checks provider availability.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call host unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("call host unhealthy: %s", resp.Status)
	}
	return nil
}
