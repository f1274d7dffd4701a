package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/pipeline"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

const singleFeature = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"us1","geometry":{"type":"Point","coordinates":[10,20,5]},
	 "properties":{"mag":5.2,"place":"Test","time":1700000000000}}]}`

// --- mocks ---

type staticFetcher struct {
	data  []byte
	err   error
	calls atomic.Int64
}

func (f *staticFetcher) Fetch(context.Context) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

// blockingFetcher parks inside Fetch until released.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context) ([]byte, error) {
	close(f.entered)
	select {
	case <-f.release:
		return []byte(`{"type":"FeatureCollection","features":[]}`), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type countingCollection struct {
	*reconcile.MemoryCollection
	creates int
	updates int
}

func (c *countingCollection) Create(ctx context.Context, doc domain.QuakeDocument) error {
	c.creates++
	return c.MemoryCollection.Create(ctx, doc)
}

func (c *countingCollection) Update(ctx context.Context, id string, doc domain.QuakeDocument) error {
	c.updates++
	return c.MemoryCollection.Update(ctx, id, doc)
}

type failingCollection struct{}

func (failingCollection) FindByExternalID(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store offline")
}
func (failingCollection) Create(context.Context, domain.QuakeDocument) error { return nil }
func (failingCollection) Update(context.Context, string, domain.QuakeDocument) error {
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	replaced [][]domain.EncodedQuake
}

func (s *recordingSink) Replace(records []domain.EncodedQuake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, records)
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replaced)
}

type recordingPublisher struct {
	err    error
	events []domain.SyncEvent
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []domain.SyncEvent) error {
	p.events = append(p.events, events...)
	return p.err
}

// --- helpers ---

type harness struct {
	store   *countingCollection
	sink    *recordingSink
	metrics *observability.Metrics
}

func newPipeline(t *testing.T, f pipeline.FeedFetcher, opts ...pipeline.Option) (*pipeline.Pipeline, *harness) {
	t.Helper()
	h := &harness{
		store:   &countingCollection{MemoryCollection: reconcile.NewMemoryCollection()},
		sink:    &recordingSink{},
		metrics: observability.NewMetricsForTesting(),
	}
	r := reconcile.New(h.store, slog.Default(), h.metrics)
	tfm := pipeline.NewTransformer(domain.NewEncoder(domain.ClassicRadiusTable), nil, slog.Default())
	return pipeline.New(f, tfm, r, h.sink, slog.Default(), h.metrics, opts...), h
}

// --- tests ---

func TestRunOnce_CreateThenUpdate(t *testing.T) {
	p, h := newPipeline(t, &staticFetcher{data: []byte(singleFeature)})

	first, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 1, h.store.creates)

	second, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, h.store.creates, "second identical pass must not create")
	assert.Equal(t, 1, h.store.updates)

	docs := h.store.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "us1", docs[0].USGSID)
	assert.Equal(t, "Test", docs[0].Place)

	require.Equal(t, 2, h.sink.calls())
	snap := h.sink.replaced[1]
	require.Len(t, snap, 1)
	assert.Equal(t, domain.ColorDarkOrange, snap[0].Encoding.Color)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, second, p.LastPass())
}

func TestRunOnce_FetchFailureLeavesSnapshot(t *testing.T) {
	fetcher := &staticFetcher{err: errors.New("connection refused")}
	p, h := newPipeline(t, fetcher)

	_, err := p.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch feed")
	assert.Zero(t, h.sink.calls())
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.FeedFetches.WithLabelValues("error")), 1e-9)
}

func TestRunOnce_ParseFailureLeavesSnapshot(t *testing.T) {
	p, h := newPipeline(t, &staticFetcher{data: []byte("<html>")})

	_, err := p.RunOnce(context.Background())

	require.Error(t, err)
	assert.Zero(t, h.sink.calls())
}

func TestRunOnce_EmptyFeed(t *testing.T) {
	p, h := newPipeline(t, &staticFetcher{data: []byte(`{"type":"FeatureCollection","features":[]}`)})

	result, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, h.store.creates)
	assert.Zero(t, h.store.updates)
	require.Equal(t, 1, h.sink.calls())
	assert.Empty(t, h.sink.replaced[0])
}

func TestRunOnce_StoreFailuresDoNotAbort(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	sink := &recordingSink{}
	r := reconcile.New(failingCollection{}, slog.Default(), metrics)
	tfm := pipeline.NewTransformer(domain.NewEncoder(domain.ClassicRadiusTable), nil, slog.Default())
	p := pipeline.New(&staticFetcher{data: []byte(singleFeature)}, tfm, r, sink, slog.Default(), metrics)

	result, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Equal(t, 1, sink.calls())
	assert.Len(t, sink.replaced[0], 1, "records are displayed even when persistence fails")
}

func TestRunOnce_SkipsMalformedFeatures(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"ok","geometry":{"type":"Point","coordinates":[1,2,3]},"properties":{"mag":null}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2,3]},"properties":{"mag":2}}]}`)
	p, h := newPipeline(t, &staticFetcher{data: data})

	result, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.FeaturesSkipped), 1e-9)

	rec := h.sink.replaced[0][0]
	assert.False(t, rec.Encoding.Renderable)
	assert.Equal(t, 1, h.store.creates, "non-renderable records are still persisted")
}

func TestRunOnce_PublishesReconciledRecords(t *testing.T) {
	pub := &recordingPublisher{}
	p, h := newPipeline(t, &staticFetcher{data: []byte(singleFeature)}, pipeline.WithPublisher(pub))

	result, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "created", pub.events[0].Outcome)
	assert.Equal(t, "us1", pub.events[0].Quake.ExternalID)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.EventsPublished.WithLabelValues("success")), 1e-9)
}

func TestRunOnce_PublishFailureIsBestEffort(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p, h := newPipeline(t, &staticFetcher{data: []byte(singleFeature)}, pipeline.WithPublisher(pub))

	result, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Published)
	assert.Equal(t, 1, h.sink.calls())
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.EventsPublished.WithLabelValues("error")), 1e-9)
}

func TestRunOnce_RejectsConcurrentPass(t *testing.T) {
	fetcher := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	p, h := newPipeline(t, fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunOnce(context.Background())
		done <- err
	}()
	<-fetcher.entered

	_, err := p.RunOnce(context.Background())
	require.ErrorIs(t, err, pipeline.ErrPassInProgress)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.PassesRejected), 1e-9)

	close(fetcher.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.sink.calls())
}

func TestLoad_DoesNotPersist(t *testing.T) {
	p, h := newPipeline(t, &staticFetcher{data: []byte(singleFeature)})

	records, skipped, err := p.Load(context.Background())

	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)
	assert.Zero(t, h.store.creates)
	assert.Zero(t, h.sink.calls())
}

func TestRun_PollsOnTicker(t *testing.T) {
	fake := clockwork.NewFakeClock()
	fetcher := &staticFetcher{data: []byte(singleFeature)}
	p, h := newPipeline(t, fetcher, pipeline.WithClock(fake))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Minute) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, fake.BlockUntilContext(ctx, 1))

	fake.Advance(time.Minute)
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, h.sink.calls())
	assert.InDelta(t, 0.0, testutil.ToFloat64(h.metrics.PollerRunning), 1e-9)
}

func TestRun_ContextCancellation(t *testing.T) {
	p, _ := newPipeline(t, &staticFetcher{err: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx, time.Minute))
}
