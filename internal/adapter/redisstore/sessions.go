// Package redisstore stores auth sessions in Redis so they survive restarts and
// are shared between replicas.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/quake-sync/internal/auth"
)

const keyPrefix = "quakesync:session:"

// SessionStore implements auth.SessionStore.
type SessionStore struct {
	rdb *redis.Client
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewSessionStore wraps a connected client.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(token string) string {
	return keyPrefix + token
}

func (s *SessionStore) Save(ctx context.Context, sess auth.Session, ttl time.Duration) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.Token), val, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, token string) (auth.Session, bool, error) {
	val, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.Session{}, false, nil
	}
	if err != nil {
		return auth.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	var sess auth.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return auth.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
