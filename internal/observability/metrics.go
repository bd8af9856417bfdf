package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lunch_locator"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Supervisor slot metrics.
	SlotLaunches     *prometheus.CounterVec // labels: slot
	SlotReplacements *prometheus.CounterVec // labels: slot
	SlotErrors       *prometheus.CounterVec // labels: slot
	SlotActive       *prometheus.GaugeVec   // labels: slot

	// Orchestrator metrics.
	StatusTransitions   *prometheus.CounterVec   // labels: field={location,places}, phase={pending,success,failure}
	FailureKinds        *prometheus.CounterVec   // labels: field, kind
	CollaboratorLatency *prometheus.HistogramVec // labels: collaborator={location,search}

	// Search provider metrics.
	SearchRequests    *prometheus.CounterVec   // labels: method={search,reverse}, outcome={success,error,empty,throttled}
	SearchCache       *prometheus.CounterVec   // labels: result={hit,miss,expired}
	SearchAPIDuration *prometheus.HistogramVec // labels: method

	// Snapshot export metrics.
	SnapshotLoads   *prometheus.CounterVec // labels: loader, outcome={success,error}
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SlotLaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_launches_total",
			Help:      "Units of work submitted to a supervisor slot.",
		}, []string{"slot"}),
		SlotReplacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_replacements_total",
			Help:      "Units of work cancelled because a newer unit replaced them.",
		}, []string{"slot"}),
		SlotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_errors_total",
			Help:      "Units of work that ended with an unhandled error.",
		}, []string{"slot"}),
		SlotActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slot_active",
			Help:      "1 while a slot has an occupant, 0 otherwise.",
		}, []string{"slot"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "GeoState status transitions by field and phase.",
		}, []string{"field", "phase"}),
		FailureKinds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Terminal failures by field and error kind.",
		}, []string{"field", "kind"}),
		CollaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Duration of location and search collaborator calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collaborator"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search provider requests by method and outcome.",
		}, []string{"method", "outcome"}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search cache lookups by result.",
		}, []string{"result"}),
		SearchAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_loads_total",
			Help:      "Snapshot deliveries by loader and outcome.",
		}, []string{"loader", "outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the snapshot pipeline is active, 0 when shut down.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SlotLaunches,
		m.SlotReplacements,
		m.SlotErrors,
		m.SlotActive,
		m.StatusTransitions,
		m.FailureKinds,
		m.CollaboratorLatency,
		m.SearchRequests,
		m.SearchCache,
		m.SearchAPIDuration,
		m.SnapshotLoads,
		m.PipelineRunning,
	}
}
