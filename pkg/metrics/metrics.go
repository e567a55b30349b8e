package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as the outcome label
const (
	OutcomeSuccess = "success"
	OutcomeStale   = "stale"
)

// Recorder holds the rate refresh metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	FetchesTotal          *prometheus.CounterVec
	FetchDuration         prometheus.Histogram
	StaleResponsesTotal   prometheus.Counter
	RetriesExhaustedTotal prometheus.Counter
	ActiveViews           prometheus.Gauge
}

// NewRecorder creates the metrics and registers them on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_rate_fetches_total",
				Help: "Rate fetches by outcome (success or error kind)",
			},
			[]string{"outcome"},
		),

		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fx_rate_fetch_duration_seconds",
				Help:    "Duration of rate fetches",
				Buckets: prometheus.DefBuckets,
			},
		),

		StaleResponsesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fx_rate_stale_responses_total",
				Help: "Completed fetches discarded because the view moved on",
			},
		),

		RetriesExhaustedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fx_rate_retries_exhausted_total",
				Help: "Times a view stopped retrying after reaching max retries",
			},
		),

		ActiveViews: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fx_active_views",
				Help: "Mounted rate views",
			},
		),
	}
}

// ObserveFetch records a completed fetch
func (r *Recorder) ObserveFetch(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.FetchesTotal.WithLabelValues(outcome).Inc()
	r.FetchDuration.Observe(elapsed.Seconds())
}

// StaleResponse records a discarded completion
func (r *Recorder) StaleResponse() {
	if r == nil {
		return
	}
	r.StaleResponsesTotal.Inc()
}

// RetriesExhausted records a view giving up on automatic retries
func (r *Recorder) RetriesExhausted() {
	if r == nil {
		return
	}
	r.RetriesExhaustedTotal.Inc()
}

// ViewOpened increments the active views gauge
func (r *Recorder) ViewOpened() {
	if r == nil {
		return
	}
	r.ActiveViews.Inc()
}

// ViewClosed decrements the active views gauge
func (r *Recorder) ViewClosed() {
	if r == nil {
		return
	}
	r.ActiveViews.Dec()
}
