// Package metrics defines the Prometheus collectors reported by a matrix build
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the builder. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PeriodsProcessed  prometheus.Counter
	EmptyPeriods      prometheus.Counter
	EventsProcessed   prometheus.Counter
	PairsAccumulated  prometheus.Counter
	TimelineLength    prometheus.Histogram
	MatrixEntries     prometheus.Gauge
	BatchesFetched    *prometheus.CounterVec
	BatchFetchLatency *prometheus.HistogramVec
	BuildDuration     prometheus.Histogram
	BuildsTotal       *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer makes them visible to Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PeriodsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cooccurrence_periods_processed_total",
				Help: "Observation periods turned into timelines and windowed.",
			},
		),
		EmptyPeriods: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cooccurrence_empty_periods_total",
				Help: "Observation periods with no events after roll-up and de-duplication.",
			},
		),
		EventsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cooccurrence_events_processed_total",
				Help: "Timeline events used as window targets.",
			},
		),
		PairsAccumulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cooccurrence_pairs_accumulated_total",
				Help: "Weighted (target, context) pairs added to the matrix.",
			},
		),
		TimelineLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cooccurrence_timeline_length",
				Help:    "Number of events per timeline.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
		MatrixEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cooccurrence_matrix_entries",
				Help: "Non-empty cells in the most recently finished matrix.",
			},
		),
		BatchesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cooccurrence_batches_fetched_total",
				Help: "Event batches pulled from the record source by source type.",
			},
			[]string{"source"},
		),
		BatchFetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cooccurrence_batch_fetch_seconds",
				Help:    "Latency of a single event batch fetch.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cooccurrence_build_duration_seconds",
				Help:    "Wall time of a complete matrix build.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cooccurrence_builds_total",
				Help: "Finished builds by status (done, failed).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.PeriodsProcessed,
		m.EmptyPeriods,
		m.EventsProcessed,
		m.PairsAccumulated,
		m.TimelineLength,
		m.MatrixEntries,
		m.BatchesFetched,
		m.BatchFetchLatency,
		m.BuildDuration,
		m.BuildsTotal,
	)

	return m
}

// ObserveTimeline records one windowed timeline.
func (m *Metrics) ObserveTimeline(events int, pairs int64) {
	if m == nil {
		return
	}
	m.PeriodsProcessed.Inc()
	if events == 0 {
		m.EmptyPeriods.Inc()
	}
	m.EventsProcessed.Add(float64(events))
	m.PairsAccumulated.Add(float64(pairs))
	m.TimelineLength.Observe(float64(events))
}

// ObserveBatch records one batch fetch from the named source.
func (m *Metrics) ObserveBatch(source string, took time.Duration) {
	if m == nil {
		return
	}
	m.BatchesFetched.WithLabelValues(source).Inc()
	m.BatchFetchLatency.WithLabelValues(source).Observe(took.Seconds())
}

// ObserveBuild records the outcome of a build.
func (m *Metrics) ObserveBuild(status string, entries int, took time.Duration) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(status).Inc()
	m.BuildDuration.Observe(took.Seconds())
	if status == "done" {
		m.MatrixEntries.Set(float64(entries))
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
