// Package metrics exposes Prometheus counters for the scheduling engine.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scry"

// Metrics owns a registry and the counters registered on it.
type Metrics struct {
	registry *prometheus.Registry

	reviews          *prometheus.CounterVec
	flagToggles      *prometheus.CounterVec
	corruptBlobs     *prometheus.CounterVec
	catalogFallbacks *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		reviews: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_total",
				Help:      "Total number of ratings applied to items",
			},
			[]string{"pool", "rating"},
		),
		flagToggles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flag_toggles_total",
				Help:      "Total number of flag toggles, by resulting state",
			},
			[]string{"pool", "flagged"},
		),
		corruptBlobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "corrupt_progress_blobs_total",
				Help:      "Stored progress blobs that failed to decode and were treated as empty",
			},
			[]string{"pool"},
		),
		catalogFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_fallbacks_total",
				Help:      "Mastery computations that used fallback totals for a pool",
			},
			[]string{"pool"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Backing store failures, by operation",
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ReviewRecorded counts one applied rating.
func (m *Metrics) ReviewRecorded(pool, rating string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(pool, rating).Inc()
}

// FlagToggled counts one flag toggle ending in the given state.
func (m *Metrics) FlagToggled(pool string, flagged bool) {
	if m == nil {
		return
	}
	state := "false"
	if flagged {
		state = "true"
	}
	m.flagToggles.WithLabelValues(pool, state).Inc()
}

// CorruptBlobRecovered counts one undecodable blob replaced by an empty pool.
func (m *Metrics) CorruptBlobRecovered(pool string) {
	if m == nil {
		return
	}
	m.corruptBlobs.WithLabelValues(pool).Inc()
}

// CatalogFallbackUsed counts one pool served from fallback totals.
func (m *Metrics) CatalogFallbackUsed(pool string) {
	if m == nil {
		return
	}
	m.catalogFallbacks.WithLabelValues(pool).Inc()
}

// StoreError counts one failed backing store operation.
func (m *Metrics) StoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}
