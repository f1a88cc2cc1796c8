package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// collect and build stages.
type Metrics struct {
	ReadingsFetched   prometheus.Counter
	ReadingsUpserted  prometheus.Counter
	ReadingsPublished prometheus.Counter

	APIRequests *prometheus.CounterVec // labels: outcome={success,retry,error}

	CollectDuration prometheus.Histogram
	BuildDuration   prometheus.Histogram

	RunErrors *prometheus.CounterVec // labels: stage={collect,aggregate,build}

	CycleRunning prometheus.Gauge
	LastSuccess  prometheus.Gauge // unix seconds of the last completed cycle
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsFetched,
		m.ReadingsUpserted,
		m.ReadingsPublished,
		m.APIRequests,
		m.CollectDuration,
		m.BuildDuration,
		m.RunErrors,
		m.CycleRunning,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wetterarena",
			Name:      "readings_fetched_total",
			Help:      "Total readings parsed from GeoSphere API responses.",
		}),
		ReadingsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wetterarena",
			Name:      "readings_upserted_total",
			Help:      "Total new rows written to the readings table.",
		}),
		ReadingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wetterarena",
			Name:      "readings_published_total",
			Help:      "Total readings published to the Kafka sink topic.",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wetterarena",
			Name:      "api_requests_total",
			Help:      "GeoSphere API requests by outcome.",
		}, []string{"outcome"}),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wetterarena",
			Name:      "collect_duration_seconds",
			Help:      "Duration of one complete collector run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wetterarena",
			Name:      "build_duration_seconds",
			Help:      "Duration of one aggregate-and-render run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wetterarena",
			Name:      "run_errors_total",
			Help:      "Failed runs by pipeline stage.",
		}, []string{"stage"}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wetterarena",
			Name:      "cycle_running",
			Help:      "1 while a collect-build cycle is in progress.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wetterarena",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful cycle.",
		}),
	}
}
