package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// User is a locally registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists local accounts. CreateUser returns ErrUserExists when
// the email is taken.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	FindUserByEmail(ctx context.Context, email string) (User, bool, error)
}

// Claims are the JWT claims issued by the local backend.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Local authenticates against bcrypt hashes in a UserStore and issues
// HS256 tokens.
type Local struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
	cost   int
}

// NewLocal creates a Local backend. Tokens expire after ttl.
func NewLocal(users UserStore, secret string, ttl time.Duration, clock clockwork.Clock) *Local {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Local{users: users, secret: []byte(secret), ttl: ttl, clock: clock, cost: bcrypt.DefaultCost}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, ok, err := l.users.FindUserByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := l.clock.Now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, User: Identity{UserID: u.ID, Email: u.Email}}, nil
}

func (l *Local) SignUp(ctx context.Context, email, password, confirm string) (Identity, error) {
	if err := validateSignUp(email, password, confirm); err != nil {
		return Identity{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    l.clock.Now().UTC(),
	}
	if err := l.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return Identity{}, ErrUserExists
		}
		return Identity{}, fmt.Errorf("create user: %w", err)
	}
	return Identity{UserID: u.ID, Email: u.Email}, nil
}
