package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"classmeet/internal/apperr"
)

// Admin is a stored admin identity. Admins are created out-of-band by the
// seed tool, never through the API.
type Admin struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// AdminStore looks up admins for login.
type AdminStore interface {
	AdminByEmail(ctx context.Context, email string) (*Admin, error)
}

// Repository implements AdminStore on Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AdminByEmail returns the admin with the given email, or nil when absent.
func (r *Repository) AdminByEmail(ctx context.Context, email string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, created_at
		FROM admins WHERE email = $1
	`, email)
	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// UpsertAdmin creates an admin if absent, used by the seed tool.
func (r *Repository) UpsertAdmin(ctx context.Context, email, name, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO admins (id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, uuid.NewString(), strings.ToLower(strings.TrimSpace(email)), name, string(hash), role)
	return err
}

// Session is an issued admin session.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Admin     Claims
}

// Authenticator checks credentials and issues sessions.
type Authenticator struct {
	store      AdminStore
	issuer     string
	signingKey string
	ttl        time.Duration
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(store AdminStore, issuer, signingKey string, ttl time.Duration) *Authenticator {
	return &Authenticator{store: store, issuer: issuer, signingKey: signingKey, ttl: ttl}
}

// SessionFrom parses a bearer Authorization header into session claims.
func (a *Authenticator) SessionFrom(authz string) (Claims, error) {
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return Claims{}, errors.New("missing bearer token")
	}
	return Parse(strings.TrimSpace(authz[len("bearer "):]), a.signingKey, a.issuer)
}

// Login verifies email/password against the stored bcrypt hash. Wrong email
// and wrong password fail the same way.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	admin, err := a.store.AdminByEmail(ctx, email)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if admin == nil {
		return Session{}, apperr.New(apperr.Forbidden, "Invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return Session{}, apperr.New(apperr.Forbidden, "Invalid credentials")
	}

	token, exp, err := Issue(admin.Email, admin.Name, admin.Role, a.issuer, a.signingKey, a.ttl)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: exp,
		Admin:     Claims{Email: admin.Email, Name: admin.Name, Role: admin.Role},
	}, nil
}
