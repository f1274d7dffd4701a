package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

// Pulse is one animation beat for a drawn marker.
type Pulse struct {
	ID    string       `json:"id"`
	Beat  int          `json:"beat"`
	Color domain.Color `json:"color"`
	Hex   string       `json:"hex"`
}

// pulseHandle owns the goroutine animating one marker.
type pulseHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the pulse and waits for its goroutine to exit.
func (h *pulseHandle) stop() {
	h.cancel()
	<-h.done
}

// MarkerLayer tracks which markers are drawn and keeps exactly one pulse
// running per drawn marker. Hidden or replaced markers have their pulse
// stopped before the call that removed them returns.
type MarkerLayer struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	interval time.Duration
	events   Broadcaster
	metrics  *observability.Metrics
	handles  map[string]*pulseHandle
}

// NewMarkerLayer creates an empty layer that emits pulses every interval.
func NewMarkerLayer(events Broadcaster, clock clockwork.Clock, interval time.Duration, metrics *observability.Metrics) *MarkerLayer {
	if events == nil {
		events = discard{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MarkerLayer{
		clock:    clock,
		interval: interval,
		events:   events,
		metrics:  metrics,
		handles:  make(map[string]*pulseHandle),
	}
}

// Sync draws the renderable records in visible and removes every other
// marker. Markers that stay drawn keep their running pulse.
func (l *MarkerLayer) Sync(visible []domain.EncodedQuake) {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := make(map[string]domain.EncodedQuake, len(visible))
	for _, r := range visible {
		if r.Encoding.Renderable {
			want[r.ExternalID] = r
		}
	}

	for id, h := range l.handles {
		if _, keep := want[id]; !keep {
			h.stop()
			delete(l.handles, id)
		}
	}
	for id, r := range want {
		if _, running := l.handles[id]; !running {
			l.handles[id] = l.start(r)
		}
	}
	l.metrics.ActivePulses.Set(float64(len(l.handles)))
}

// Reset removes every marker and draws visible from scratch.
func (l *MarkerLayer) Reset(visible []domain.EncodedQuake) {
	l.Close()
	l.Sync(visible)
}

// Close stops every pulse.
func (l *MarkerLayer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, h := range l.handles {
		h.stop()
		delete(l.handles, id)
	}
	l.metrics.ActivePulses.Set(0)
}

// Drawn returns the ids of the drawn markers in ascending order.
func (l *MarkerLayer) Drawn() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.handles))
	for id := range l.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *MarkerLayer) start(r domain.EncodedQuake) *pulseHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &pulseHandle{cancel: cancel, done: make(chan struct{})}
	ticker := l.clock.NewTicker(l.interval)

	go func() {
		defer close(h.done)
		defer ticker.Stop()
		for beat := 1; ; beat++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
			l.events.Broadcast(Event{Type: EventPulse, Data: Pulse{
				ID:    r.ExternalID,
				Beat:  beat,
				Color: r.Encoding.Color,
				Hex:   r.Encoding.Color.Hex(),
			}})
		}
	}()
	return h
}
