// Package auth signs dashboard users in and out and keeps their sessions.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials means the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordMismatch means the confirmation differs from the password.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrUserExists means an account with the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput covers a blank email or a too short password.
	ErrInvalidInput = errors.New("email and a password of at least 8 characters are required")
	// ErrNoSession means the token does not belong to a live session.
	ErrNoSession = errors.New("no active session")
)

// MinPasswordLength matches the users collection rule of the hosted backend.
const MinPasswordLength = 8

// Identity is the signed-in user.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Session is an authenticated token and its owner.
type Session struct {
	Token     string    `json:"token"`
	User      Identity  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator is the credential backend.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password, confirm string) (Identity, error)
}

// SessionStore keeps sessions by token until their ttl runs out.
type SessionStore interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Load(ctx context.Context, token string) (Session, bool, error)
	Delete(ctx context.Context, token string) error
}

func validateSignUp(email, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if email == "" || len(password) < MinPasswordLength {
		return ErrInvalidInput
	}
	return nil
}
