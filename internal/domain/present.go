package domain

import (
	"fmt"
	"math/big"
	"sort"
	"time"
)

// DisplayTimeLayout renders local times as day/month/year, 24h clock.
const DisplayTimeLayout = "02/01/2006, 15:04:05"

// List is the ordered quake list shown next to the map.
type List struct {
	Header  string      `json:"header"`
	Entries []ListEntry `json:"entries"`
}

// ListEntry is one formatted row of the list, carrying enough data to build
// the marker popup too.
type ListEntry struct {
	ID         string  `json:"id"`
	Magnitude  string  `json:"magnitude"`
	Place      string  `json:"place"`
	LocalTime  string  `json:"local_time"`
	Depth      string  `json:"depth"`
	DetailsURL string  `json:"details_url,omitempty"`
	Color      Color   `json:"color"`
	Hex        string  `json:"hex"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// Select returns the map event emitted when the entry is picked.
func (e ListEntry) Select() CenterOn {
	return CenterOn{Lat: e.Lat, Lng: e.Lng, Zoom: SelectZoom}
}

// Present sorts records by ascending magnitude and formats them for display.
// Equal magnitudes keep their input order; records without a magnitude go last.
func Present(records []EncodedQuake, loc *time.Location) List {
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]EncodedQuake, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi, oki := sorted[i].Mag()
		mj, okj := sorted[j].Mag()
		switch {
		case !oki:
			return false
		case !okj:
			return true
		default:
			return mi < mj
		}
	})

	entries := make([]ListEntry, 0, len(sorted))
	for _, r := range sorted {
		entries = append(entries, formatEntry(r, loc))
	}

	return List{
		Header:  fmt.Sprintf("Latest earthquakes (%d)", len(records)),
		Entries: entries,
	}
}

// formatMagnitude renders one decimal from the exact binary value, rounding
// exact halves away from zero (1.25 -> "1.3", 1.15 -> "1.1").
func formatMagnitude(m float64) string {
	r := new(big.Rat).SetFloat64(m)
	if r == nil {
		return fmt.Sprintf("%.1f", m)
	}
	return r.FloatString(1)
}

func formatEntry(r EncodedQuake, loc *time.Location) ListEntry {
	mag := "n/a"
	if m, ok := r.Mag(); ok {
		mag = formatMagnitude(m)
	}
	depth := "n/a"
	if r.DepthKm != nil {
		depth = fmt.Sprintf("%g km", *r.DepthKm)
	}
	localTime := ""
	if !r.OccurredAt.IsZero() {
		localTime = r.OccurredAt.In(loc).Format(DisplayTimeLayout)
	}

	return ListEntry{
		ID:         r.ExternalID,
		Magnitude:  mag,
		Place:      r.Place,
		LocalTime:  localTime,
		Depth:      depth,
		DetailsURL: r.DetailsURL,
		Color:      r.Encoding.Color,
		Hex:        r.Encoding.Color.Hex(),
		Lat:        r.Lat,
		Lng:        r.Lon,
	}
}
