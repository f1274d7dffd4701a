// Package dashboard holds the application context shared by the map
// consumers: the current snapshot, the magnitude threshold and the drawn
// marker layer.
package dashboard

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

// Event types pushed to map consumers.
const (
	EventSnapshot  = "snapshot"
	EventThreshold = "threshold"
	EventCenterOn  = "center_on"
	EventPulse     = "pulse"
)

var (
	// ErrNotFound is returned when no record in the snapshot has the id.
	ErrNotFound = errors.New("earthquake not found")
	// ErrInvalidThreshold rejects NaN and infinite thresholds.
	ErrInvalidThreshold = errors.New("threshold must be a finite number")
)

// Event is a message for map consumers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster fans events out to connected consumers.
type Broadcaster interface {
	Broadcast(evt Event)
}

type discard struct{}

func (discard) Broadcast(Event) {}

// View is the filter state together with what it makes visible.
type View struct {
	Threshold float64               `json:"threshold"`
	Filtered  bool                  `json:"filtered"`
	Markers   []domain.EncodedQuake `json:"markers"`
	List      domain.List           `json:"list"`
}

// State is the dashboard's application context. The zero value is not
// usable; construct with New.
type State struct {
	mu        sync.RWMutex
	records   []domain.EncodedQuake
	threshold float64
	filtered  bool

	loc     *time.Location
	markers *MarkerLayer
	events  Broadcaster
	metrics *observability.Metrics
}

// New creates an empty State. A nil location displays times in UTC.
func New(loc *time.Location, markers *MarkerLayer, events Broadcaster, metrics *observability.Metrics) *State {
	if loc == nil {
		loc = time.UTC
	}
	if events == nil {
		events = discard{}
	}
	return &State{
		records: []domain.EncodedQuake{},
		loc:     loc,
		markers: markers,
		events:  events,
		metrics: metrics,
	}
}

// Replace swaps in the records of a new fetch. Markers of the previous
// snapshot are removed and the current threshold is applied to the new one.
func (s *State) Replace(records []domain.EncodedQuake) {
	s.mu.Lock()
	s.records = append([]domain.EncodedQuake(nil), records...)
	visible := s.visibleLocked()
	s.markers.Reset(visible)
	view := s.viewLocked(visible)
	s.metrics.SnapshotSize.Set(float64(len(s.records)))
	s.metrics.VisibleSize.Set(float64(len(visible)))
	s.mu.Unlock()

	s.events.Broadcast(Event{Type: EventSnapshot, Data: view})
}

// SetThreshold keeps only records with magnitude >= t visible.
func (s *State) SetThreshold(t float64) (View, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return View{}, ErrInvalidThreshold
	}
	return s.applyFilter(t, true), nil
}

// ResetFilter sets the threshold back to 0 and shows every record again,
// including those without a magnitude.
func (s *State) ResetFilter() View {
	return s.applyFilter(0, false)
}

func (s *State) applyFilter(t float64, filtered bool) View {
	s.mu.Lock()
	s.threshold = t
	s.filtered = filtered
	visible := s.visibleLocked()
	s.markers.Sync(visible)
	view := s.viewLocked(visible)
	s.metrics.VisibleSize.Set(float64(len(visible)))
	s.mu.Unlock()

	s.events.Broadcast(Event{Type: EventThreshold, Data: view})
	return view
}

// Threshold returns the current threshold and whether a filter is active.
func (s *State) Threshold() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, s.filtered
}

// Visible returns the records passing the current filter, in snapshot order.
func (s *State) Visible() []domain.EncodedQuake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

// Snapshot returns every record of the last fetch.
func (s *State) Snapshot() []domain.EncodedQuake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EncodedQuake{}, s.records...)
}

// List presents the visible records.
func (s *State) List() domain.List {
	return domain.Present(s.Visible(), s.loc)
}

// ListAbove presents the snapshot filtered at minMag, leaving the shared
// threshold untouched.
func (s *State) ListAbove(minMag float64) domain.List {
	return domain.Present(domain.Filter(s.Snapshot(), minMag), s.loc)
}

// View returns the current filter state and visible records.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(s.visibleLocked())
}

// Get looks a record up by its USGS id.
func (s *State) Get(id string) (domain.EncodedQuake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ExternalID == id {
			return r, nil
		}
	}
	return domain.EncodedQuake{}, ErrNotFound
}

// Select emits a center_on event for the record and returns it.
func (s *State) Select(id string) (domain.CenterOn, error) {
	r, err := s.Get(id)
	if err != nil {
		return domain.CenterOn{}, err
	}
	center := domain.CenterOn{Lat: r.Lat, Lng: r.Lon, Zoom: domain.SelectZoom}
	s.events.Broadcast(Event{Type: EventCenterOn, Data: center})
	return center, nil
}

// Location is the display time zone.
func (s *State) Location() *time.Location {
	return s.loc
}

// Legend returns the magnitude legend.
func (s *State) Legend() []domain.LegendEntry {
	return domain.Legend()
}

// Close stops every marker pulse.
func (s *State) Close() {
	s.markers.Close()
}

func (s *State) visibleLocked() []domain.EncodedQuake {
	if !s.filtered {
		return append([]domain.EncodedQuake{}, s.records...)
	}
	return domain.Filter(s.records, s.threshold)
}

func (s *State) viewLocked(visible []domain.EncodedQuake) View {
	markers := make([]domain.EncodedQuake, 0, len(visible))
	for _, r := range visible {
		if r.Encoding.Renderable {
			markers = append(markers, r)
		}
	}
	return View{
		Threshold: s.threshold,
		Filtered:  s.filtered,
		Markers:   markers,
		List:      domain.Present(visible, s.loc),
	}
}
