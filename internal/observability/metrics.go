package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geoderive"

// Metrics holds the Prometheus counters, histograms, and gauges for derivation
// batches and STEC runs.
type Metrics struct {
	BundlesProcessed prometheus.Counter
	BundleFailures   *prometheus.CounterVec // labels: stage={read,select,derive,write}
	ModelsApplied    *prometheus.CounterVec // labels: kind={region,spatial}
	BatchRunning     prometheus.Gauge

	// Per-bundle metrics.
	DerivationDuration prometheus.Histogram
	RecordSamples      prometheus.Histogram

	// Notification metrics.
	NotificationsPublished prometheus.Counter
	NotificationErrors     prometheus.Counter

	RegionCache *prometheus.CounterVec // labels: result={hit,miss}

	// Slant integration metrics.
	IntegrandEvaluations prometheus.Counter
	ClampedSamples       prometheus.Counter
}

// NewMetrics creates metrics and registers them with reg. A nil reg uses the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BundlesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_processed_total",
			Help:      "Total record bundles derived and written.",
		}),
		BundleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_failures_total",
			Help:      "Record bundles that failed, by pipeline stage.",
		}, []string{"stage"}),
		ModelsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "models_applied_total",
			Help:      "Transfer functions applied, by model kind.",
		}, []string{"kind"}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch is being processed, 0 otherwise.",
		}),
		DerivationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derivation_duration_seconds",
			Help:      "Duration of a complete read-derive-write cycle for one bundle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordSamples: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_samples",
			Help:      "Number of samples per derived record.",
			Buckets:   prometheus.ExponentialBuckets(60, 4, 8),
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Derived-record notifications written to Kafka.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Derived-record notifications that could not be written.",
		}),
		RegionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_cache_total",
			Help:      "Region lookup cache results.",
		}, []string{"result"}),
		IntegrandEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrand_evaluations_total",
			Help:      "Density model evaluations made by the slant integrator.",
		}),
		ClampedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamped_samples_total",
			Help:      "Negative density samples replaced with zero.",
		}),
	}

	reg.MustRegister(
		m.BundlesProcessed,
		m.BundleFailures,
		m.ModelsApplied,
		m.BatchRunning,
		m.DerivationDuration,
		m.RecordSamples,
		m.NotificationsPublished,
		m.NotificationErrors,
		m.RegionCache,
		m.IntegrandEvaluations,
		m.ClampedSamples,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
