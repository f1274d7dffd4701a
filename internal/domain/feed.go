package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"
)

// ErrMalformedFeature marks a feed feature that cannot become an Earthquake.
var ErrMalformedFeature = errors.New("malformed feature")

// SkippedFeature records a feature dropped while parsing a feed.
type SkippedFeature struct {
	Index int
	ID    string
	Err   error
}

// Feed is the parsed content of one summary feed document.
type Feed struct {
	Quakes  []Earthquake
	Skipped []SkippedFeature
}

// ParseFeed decodes a GeoJSON FeatureCollection. A document that is not a
// FeatureCollection is an error; individual bad features are reported in
// Skipped and do not fail the whole feed.
func ParseFeed(data []byte) (Feed, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Feed{}, fmt.Errorf("parse feed: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return Feed{}, fmt.Errorf("parse feed: unexpected document type %q", fc.Type)
	}

	feed := Feed{Quakes: make([]Earthquake, 0, len(fc.Features))}
	for i, f := range fc.Features {
		q, err := ParseFeature(f)
		if err != nil {
			feed.Skipped = append(feed.Skipped, SkippedFeature{Index: i, ID: featureID(f), Err: err})
			continue
		}
		feed.Quakes = append(feed.Quakes, q)
	}
	return feed, nil
}

// ParseFeature converts one USGS feature. Coordinates are [lng, lat, depth];
// properties carry mag, place, time (epoch milliseconds) and url. A null or
// non-numeric magnitude or depth is kept as nil rather than rejected.
func ParseFeature(f *geojson.Feature) (Earthquake, error) {
	if f == nil {
		return Earthquake{}, fmt.Errorf("%w: nil feature", ErrMalformedFeature)
	}
	id := featureID(f)
	if id == "" {
		return Earthquake{}, fmt.Errorf("%w: missing id", ErrMalformedFeature)
	}
	if f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
		return Earthquake{}, fmt.Errorf("%w: %s has no point geometry", ErrMalformedFeature, id)
	}

	coords := f.Geometry.Point
	q := Earthquake{
		ExternalID: id,
		Lon:        coords[0],
		Lat:        coords[1],
		Magnitude:  optionalFloat(f, "mag"),
	}
	if len(coords) >= 3 && !math.IsNaN(coords[2]) {
		depth := coords[2]
		q.DepthKm = &depth
	}
	if place, err := f.PropertyString("place"); err == nil {
		q.Place = strings.TrimSpace(place)
	}
	if url, err := f.PropertyString("url"); err == nil {
		q.DetailsURL = url
	}
	if ms, err := f.PropertyFloat64("time"); err == nil {
		q.OccurredAt = time.UnixMilli(int64(ms)).UTC()
	}
	return q, nil
}

func optionalFloat(f *geojson.Feature, key string) *float64 {
	v, err := f.PropertyFloat64(key)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func featureID(f *geojson.Feature) string {
	if f == nil || f.ID == nil {
		return ""
	}
	switch id := f.ID.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
