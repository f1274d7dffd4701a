package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills an empty place from the quake's coordinates.
// Quakes that already have place text, or a nil geocoder, pass through
// unchanged. Lookup failures degrade to the original record.
func EnrichWithGeocoding(ctx context.Context, q Earthquake, geocoder Geocoder, logger *slog.Logger) Earthquake {
	if geocoder == nil || q.Place != "" {
		return q
	}

	result, err := geocoder.ReverseGeocode(ctx, q.Lat, q.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"usgs_id", q.ExternalID,
			"lat", q.Lat,
			"lon", q.Lon,
			"error", err,
		)
		q.GeoSource = "failed"
		return q
	}
	if result.FormattedAddress != "" {
		q.Place = result.FormattedAddress
		q.GeoSource = "reverse"
	}
	return q
}
