package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_sync"

// Metrics holds the Prometheus counters, histograms, and gauges for the sync service.
type Metrics struct {
	FeedFetches        *prometheus.CounterVec // labels: outcome={success,error}
	FeaturesSkipped    prometheus.Counter
	Upserts            *prometheus.CounterVec // labels: outcome={created,updated,failed}
	EventsPublished    *prometheus.CounterVec // labels: outcome={success,error}
	PassDuration       prometheus.Histogram
	PassesRejected     prometheus.Counter
	SnapshotSize       prometheus.Gauge
	VisibleSize        prometheus.Gauge
	PollerRunning      prometheus.Gauge
	WebsocketClients   prometheus.Gauge
	ActivePulses       prometheus.Gauge
	AuthAttempts       *prometheus.CounterVec   // labels: action={sign_in,sign_up}, outcome={success,error}
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FeaturesSkipped,
		m.Upserts,
		m.EventsPublished,
		m.PassDuration,
		m.PassesRejected,
		m.SnapshotSize,
		m.VisibleSize,
		m.PollerRunning,
		m.WebsocketClients,
		m.ActivePulses,
		m.AuthAttempts,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "USGS feed fetches by outcome.",
		}, []string{"outcome"}),
		FeaturesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "Feed features dropped because they had no id or point geometry.",
		}),
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Store upserts by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Downstream sync events by outcome.",
		}, []string{"outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of a complete fetch-reconcile pass.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PassesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_rejected_total",
			Help:      "Passes refused because another pass was still in flight.",
		}),
		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Records in the current in-memory snapshot.",
		}),
		VisibleSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_records",
			Help:      "Records passing the current magnitude threshold.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 when the feed poller is active, 0 when shut down.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected map consumers.",
		}),
		ActivePulses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pulses",
			Help:      "Running marker pulse handles.",
		}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Sign-in and sign-up attempts by outcome.",
		}, []string{"action", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}
