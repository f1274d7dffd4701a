package reconcile

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/couchcryptid/quake-sync/internal/domain"
)

// MemoryCollection is an in-process Collection used by the list command and
// by tests.
type MemoryCollection struct {
	mu      sync.Mutex
	nextID  int
	byExtID map[string]string
	records map[string]domain.QuakeDocument
}

// NewMemoryCollection creates an empty MemoryCollection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{
		byExtID: make(map[string]string),
		records: make(map[string]domain.QuakeDocument),
	}
}

func (m *MemoryCollection) FindByExternalID(_ context.Context, externalID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byExtID[externalID]
	return id, ok, nil
}

func (m *MemoryCollection) Create(_ context.Context, doc domain.QuakeDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := strconv.Itoa(m.nextID)
	m.byExtID[doc.USGSID] = id
	m.records[id] = doc
	return nil
}

func (m *MemoryCollection) Update(_ context.Context, recordID string, doc domain.QuakeDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[recordID]; !ok {
		return ErrRecordNotFound
	}
	m.records[recordID] = doc
	return nil
}

// Documents returns the stored documents ordered by usgs_id.
func (m *MemoryCollection) Documents() []domain.QuakeDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QuakeDocument, 0, len(m.records))
	for _, doc := range m.records {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].USGSID < out[j].USGSID })
	return out
}
