package domain

import (
	"time"
)

// Earthquake is one seismic event observed in the USGS feed.
type Earthquake struct {
	ExternalID string    `json:"id"`
	Magnitude  *float64  `json:"magnitude"`
	Place      string    `json:"place"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	DepthKm    *float64  `json:"depth_km"`
	OccurredAt time.Time `json:"occurred_at"`
	DetailsURL string    `json:"details_url,omitempty"`

	// Geocoding enrichment, set only when the feed had no place text.
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "failed"

	RawPayload []byte `json:"-"`
}

// Mag returns the magnitude and whether the feed carried a numeric value.
func (q Earthquake) Mag() (float64, bool) {
	if q.Magnitude == nil {
		return 0, false
	}
	return *q.Magnitude, true
}

// EncodedQuake is an Earthquake paired with its derived display attributes.
type EncodedQuake struct {
	Earthquake
	Encoding Encoding `json:"encoding"`
}

// Encoding holds the visual attributes derived from a magnitude.
type Encoding struct {
	Color        Color   `json:"color"`
	RadiusMeters float64 `json:"radius_meters"`
	// Renderable is false when the magnitude is missing; such records are
	// listed but never drawn as circles.
	Renderable bool `json:"renderable"`
}

// QuakeDocument is the persisted projection of an Earthquake. Field names
// follow the `terremoti` collection schema.
type QuakeDocument struct {
	USGSID    string   `json:"usgs_id"`
	Magnitude *float64 `json:"magnitudo"`
	Place     string   `json:"luogo"`
	Lat       float64  `json:"latitudine"`
	Lon       float64  `json:"longitudine"`
	DepthKm   *float64 `json:"profondita"`
	DateTime  string   `json:"DateTime"`
}

// ToDocument projects the mutable fields of a quake onto the stored schema.
func ToDocument(q Earthquake) QuakeDocument {
	return QuakeDocument{
		USGSID:    q.ExternalID,
		Magnitude: q.Magnitude,
		Place:     q.Place,
		Lat:       q.Lat,
		Lon:       q.Lon,
		DepthKm:   q.DepthKm,
		DateTime:  q.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// CenterOn asks the map consumer to center the view on a point.
type CenterOn struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// SelectZoom is the fixed zoom level used when an entry is selected.
const SelectZoom = 8

// Float returns a pointer to v. Convenient for building fixtures.
func Float(v float64) *float64 {
	return &v
}
