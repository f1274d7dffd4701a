package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-sync/internal/observability"
)

// Manager drives sign-in, registration and sign-out on top of an
// Authenticator, and remembers issued sessions so they can be restored.
type Manager struct {
	backend     Authenticator
	sessions    SessionStore
	fallbackTTL time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewManager creates a Manager. fallbackTTL applies to tokens without an
// exp claim.
func NewManager(backend Authenticator, sessions SessionStore, fallbackTTL time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		backend:     backend,
		sessions:    sessions,
		fallbackTTL: fallbackTTL,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// SignIn authenticates and stores the resulting session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	s, err := m.backend.SignIn(ctx, email, password)
	if err != nil {
		m.count("sign_in", err)
		return Session{}, err
	}

	ttl := m.ttl(s.Token)
	if ttl <= 0 {
		m.count("sign_in", ErrInvalidCredentials)
		return Session{}, fmt.Errorf("%w: token already expired", ErrInvalidCredentials)
	}
	s.ExpiresAt = m.clock.Now().Add(ttl).UTC()

	if err := m.sessions.Save(ctx, s, ttl); err != nil {
		m.count("sign_in", err)
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	m.count("sign_in", nil)
	m.logger.Info("user signed in", "user_id", s.User.UserID)
	return s, nil
}

// Register creates an account. The confirmation is checked before the
// backend is contacted. Registration does not sign the user in.
func (m *Manager) Register(ctx context.Context, email, password, confirm string) (Identity, error) {
	email = normalizeEmail(email)
	if err := validateSignUp(email, password, confirm); err != nil {
		m.count("sign_up", err)
		return Identity{}, err
	}
	id, err := m.backend.SignUp(ctx, email, password, confirm)
	m.count("sign_up", err)
	if err != nil {
		return Identity{}, err
	}
	m.logger.Info("user registered", "user_id", id.UserID)
	return id, nil
}

// SignOut forgets the session. Unknown tokens are not an error.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	if err := m.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Restore returns the live session for token, or ErrNoSession.
func (m *Manager) Restore(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	s, ok, err := m.sessions.Load(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok || !m.clock.Now().Before(s.ExpiresAt) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Valid reports whether token belongs to a live session.
func (m *Manager) Valid(ctx context.Context, token string) bool {
	_, err := m.Restore(ctx, token)
	return err == nil
}

// ttl reads the exp claim without verifying the signature; the backend that
// issued the token has already vouched for it.
func (m *Manager) ttl(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return m.fallbackTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return m.fallbackTTL
	}
	return exp.Sub(m.clock.Now())
}

func (m *Manager) count(action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.metrics.AuthAttempts.WithLabelValues(action, outcome).Inc()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
