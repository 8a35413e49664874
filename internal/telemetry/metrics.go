package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the per-phase counters and histograms exported on /metrics.
type Metrics struct {
	PhaseDuration   *prometheus.HistogramVec
	PhaseItemErrors *prometheus.CounterVec
	ResourcesFound  prometheus.Gauge
	EdgesFound      prometheus.Gauge
	CrawlsTotal     *prometheus.CounterVec
}

// NewMetrics registers the discovery metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "discovery_phase_duration_seconds",
			Help: "Duration of each discovery pipeline phase.",
		}, []string{"phase"}),
		PhaseItemErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_phase_item_errors_total",
			Help: "Per-item failures collected within a phase (non-fatal).",
		}, []string{"phase"}),
		ResourcesFound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_resources_found",
			Help: "Number of resources in the most recent crawl's working set.",
		}),
		EdgesFound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_edges_found",
			Help: "Number of resolved edges in the most recent crawl.",
		}),
		CrawlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_crawls_total",
			Help: "Crawls by outcome.",
		}, []string{"outcome"}),
	}
}
