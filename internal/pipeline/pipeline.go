package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

// ErrPassInProgress is returned when a pass is requested while another one
// is still running.
var ErrPassInProgress = errors.New("sync pass already in progress")

// FeedFetcher downloads the raw GeoJSON feed.
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Transformer derives the display record for a parsed quake.
type Transformer interface {
	Transform(ctx context.Context, q domain.Earthquake) domain.EncodedQuake
}

// Upserter mirrors one quake into the store.
type Upserter interface {
	Upsert(ctx context.Context, q domain.Earthquake) reconcile.Outcome
}

// EventPublisher announces reconciled records downstream.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []domain.SyncEvent) error
}

// SnapshotSink receives the records of every successful fetch.
type SnapshotSink interface {
	Replace(records []domain.EncodedQuake)
}

// PassResult summarizes one fetch-reconcile pass.
type PassResult struct {
	Fetched   int           `json:"fetched"`
	Skipped   int           `json:"skipped"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Published int           `json:"published"`
	Duration  time.Duration `json:"duration"`
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher sends sync events after each pass.
func WithPublisher(pub EventPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock replaces the clock driving the poll ticker.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline orchestrates the fetch-transform-reconcile loop.
type Pipeline struct {
	fetcher     FeedFetcher
	transformer Transformer
	upserter    Upserter
	sink        SnapshotSink
	publisher   EventPublisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock

	running atomic.Bool
	ready   atomic.Bool

	mu   sync.Mutex
	last PassResult
}

// New creates a Pipeline with the given stages and observability.
func New(f FeedFetcher, t Transformer, u Upserter, s SnapshotSink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     f,
		transformer: t,
		upserter:    u,
		sink:        s,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ sharedobs.ReadinessChecker = (*Pipeline)(nil)

// CheckReadiness returns nil once a pass has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no sync pass has completed yet")
	}
	return nil
}

// LastPass returns the summary of the most recent completed pass.
func (p *Pipeline) LastPass() PassResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run executes a pass immediately and then every interval until the context
// is cancelled. Failed passes are logged; the next tick tries again.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("poller started", "interval", interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.runLogged(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (p *Pipeline) runLogged(ctx context.Context) {
	result, err := p.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		p.logger.Info("skipping tick, pass still running")
	case err != nil:
		if ctx.Err() == nil {
			p.logger.Error("sync pass failed", "error", err)
		}
	default:
		p.logger.Info("sync pass complete",
			"fetched", result.Fetched,
			"skipped", result.Skipped,
			"created", result.Created,
			"updated", result.Updated,
			"failed", result.Failed,
			"duration", result.Duration,
		)
	}
}

// RunOnce performs a single pass: fetch, parse, transform, upsert each record
// in order, publish, and replace the snapshot. A fetch or parse failure aborts
// the pass and leaves the snapshot untouched. Per-record store failures are
// counted and the pass continues.
func (p *Pipeline) RunOnce(ctx context.Context) (PassResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.PassesRejected.Inc()
		return PassResult{}, ErrPassInProgress
	}
	defer p.running.Store(false)

	start := p.clock.Now()

	records, skipped, err := p.Load(ctx)
	if err != nil {
		return PassResult{}, err
	}

	result := PassResult{Fetched: len(records), Skipped: skipped}
	events := make([]domain.SyncEvent, 0, len(records))

	for _, r := range records {
		outcome := p.upserter.Upsert(ctx, r.Earthquake)
		switch outcome {
		case reconcile.OutcomeCreated:
			result.Created++
		case reconcile.OutcomeUpdated:
			result.Updated++
		default:
			result.Failed++
			continue
		}
		events = append(events, domain.NewSyncEvent(r, outcome.String()))
	}

	result.Published = p.publish(ctx, events)

	p.sink.Replace(records)

	result.Duration = p.clock.Since(start)
	p.metrics.PassDuration.Observe(result.Duration.Seconds())
	p.ready.Store(true)

	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	return result, nil
}

// Load fetches and parses the feed and derives the display records, without
// touching the store or the snapshot. Returns the records and the number of
// malformed features that were dropped.
func (p *Pipeline) Load(ctx context.Context) ([]domain.EncodedQuake, int, error) {
	data, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.metrics.FeedFetches.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("fetch feed: %w", err)
	}
	p.metrics.FeedFetches.WithLabelValues("success").Inc()

	feed, err := domain.ParseFeed(data)
	if err != nil {
		return nil, 0, err
	}

	for _, s := range feed.Skipped {
		p.logger.Warn("skipping malformed feature", "index", s.Index, "usgs_id", s.ID, "error", s.Err)
	}
	p.metrics.FeaturesSkipped.Add(float64(len(feed.Skipped)))

	records := make([]domain.EncodedQuake, 0, len(feed.Quakes))
	for _, q := range feed.Quakes {
		records = append(records, p.transformer.Transform(ctx, q))
	}
	return records, len(feed.Skipped), nil
}

// publish sends the batch best effort and returns the number delivered.
func (p *Pipeline) publish(ctx context.Context, events []domain.SyncEvent) int {
	if p.publisher == nil || len(events) == 0 {
		return 0
	}
	if err := p.publisher.PublishBatch(ctx, events); err != nil {
		p.logger.Warn("publish sync events failed", "error", err, "batch_size", len(events))
		p.metrics.EventsPublished.WithLabelValues("error").Add(float64(len(events)))
		return 0
	}
	p.metrics.EventsPublished.WithLabelValues("success").Add(float64(len(events)))
	return len(events)
}
