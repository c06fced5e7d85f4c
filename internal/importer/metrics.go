package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the importer's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	streets          *prometheus.CounterVec
	segments         prometheus.Counter
	skippedWays      prometheus.Counter
	droppedUnnamed   prometheus.Counter
	pruned           prometheus.Counter
	overpassRequests *prometheus.CounterVec
	overpassDuration prometheus.Histogram
}

// NewMetrics registers the importer collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streets_import_runs_total",
				Help: "Total number of street import runs",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "streets_import_duration_seconds",
			Help:    "Street import run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		streets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streets_import_streets_total",
				Help: "Streets upserted, by outcome",
			},
			[]string{"outcome"},
		),
		segments: f.NewCounter(prometheus.CounterOpts{
			Name: "streets_import_segments_total",
			Help: "Street segments upserted",
		}),
		skippedWays: f.NewCounter(prometheus.CounterOpts{
			Name: "streets_import_skipped_ways_total",
			Help: "Ways skipped because fewer than two of their nodes resolved",
		}),
		droppedUnnamed: f.NewCounter(prometheus.CounterOpts{
			Name: "streets_import_dropped_unnamed_total",
			Help: "Highway ways dropped for lack of a usable name",
		}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "streets_import_pruned_unnamed_total",
			Help: "Unnamed per-way streets removed by pruning",
		}),
		overpassRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streets_overpass_requests_total",
				Help: "HTTP attempts made against Overpass, by status",
			},
			[]string{"status"},
		),
		overpassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "streets_overpass_request_duration_seconds",
			Help:    "Overpass HTTP attempt duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 200},
		}),
	}
}

// ObserveOverpassRequest records one Overpass HTTP attempt.
func (m *Metrics) ObserveOverpassRequest(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.overpassRequests.WithLabelValues(status).Inc()
	m.overpassDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRun(res Result, skippedWays int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.streets.WithLabelValues("created").Add(float64(res.CreatedStreets))
	m.streets.WithLabelValues("updated").Add(float64(res.UpdatedStreets))
	m.segments.Add(float64(res.UpsertedSegments))
	m.skippedWays.Add(float64(skippedWays))
	m.pruned.Add(float64(res.PrunedUnnamed))
}

func (m *Metrics) observeDropped(n int) {
	if m == nil {
		return
	}
	m.droppedUnnamed.Add(float64(n))
}
