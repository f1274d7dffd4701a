package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock, entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.Token] = memoryEntry{session: s, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, token string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return Session{}, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, token)
		return Session{}, false, nil
	}
	return e.session, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}
