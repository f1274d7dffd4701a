// Package reconcile mirrors feed records into the persisted collection,
// keyed by the USGS id.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

// Collection is the remote record store. FindByExternalID reports found=false
// when no record carries the id.
type Collection interface {
	FindByExternalID(ctx context.Context, externalID string) (recordID string, found bool, err error)
	Create(ctx context.Context, doc domain.QuakeDocument) error
	Update(ctx context.Context, recordID string, doc domain.QuakeDocument) error
}

// Outcome is the result of one upsert.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// OK reports whether the store now holds the record's latest values.
func (o Outcome) OK() bool {
	return o != OutcomeFailed
}

// ErrRecordNotFound is returned by Collection.Update when the record id no
// longer exists.
var ErrRecordNotFound = errors.New("record not found")

var errMissingID = errors.New("record has no usgs id")

// Reconciler upserts quakes into a Collection.
type Reconciler struct {
	store   Collection
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Reconciler over the given collection.
func New(store Collection, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{store: store, logger: logger, metrics: metrics}
}

// Upsert creates the record when no stored record has its id and overwrites
// every mutable field otherwise. Failures are logged and counted, never
// returned; the caller moves on to the next record.
func (r *Reconciler) Upsert(ctx context.Context, q domain.Earthquake) Outcome {
	outcome, err := r.upsert(ctx, q)
	r.metrics.Upserts.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		r.logger.Error("upsert failed", "usgs_id", q.ExternalID, "error", err)
		return OutcomeFailed
	}
	r.logger.Debug("record reconciled", "usgs_id", q.ExternalID, "outcome", outcome.String())
	return outcome
}

func (r *Reconciler) upsert(ctx context.Context, q domain.Earthquake) (Outcome, error) {
	if q.ExternalID == "" {
		return OutcomeFailed, errMissingID
	}

	recordID, found, err := r.store.FindByExternalID(ctx, q.ExternalID)
	if err != nil {
		return OutcomeFailed, err
	}

	doc := domain.ToDocument(q)
	if !found {
		if err := r.store.Create(ctx, doc); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeCreated, nil
	}

	if err := r.store.Update(ctx, recordID, doc); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeUpdated, nil
}
