package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-sync/internal/domain"
)

// QuakeTransformer implements Transformer: optional place enrichment followed
// by the visual encoding.
type QuakeTransformer struct {
	encoder  *domain.Encoder
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a QuakeTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(encoder *domain.Encoder, geocoder domain.Geocoder, logger *slog.Logger) *QuakeTransformer {
	return &QuakeTransformer{
		encoder:  encoder,
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *QuakeTransformer) Transform(ctx context.Context, q domain.Earthquake) domain.EncodedQuake {
	q = domain.EnrichWithGeocoding(ctx, q, t.geocoder, t.logger)
	return t.encoder.EncodeQuake(q)
}
