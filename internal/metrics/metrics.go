// Package metrics holds the Prometheus collectors for sequencing activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	sequences        *prometheus.CounterVec
	sequenceDuration *prometheus.HistogramVec
	unmet            *prometheus.CounterVec
	excluded         prometheus.Counter
	exposures        prometheus.Counter
	exposureErrors   prometheus.Counter
}

// New registers the collectors on reg. Passing a fresh registry keeps tests
// independent of the default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sequences: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_sequences_total",
			Help: "Sequencing calls by strategy and preview flag",
		}, []string{"strategy", "preview"}),
		sequenceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_sequence_duration_seconds",
			Help:    "Time spent producing one ordering",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"strategy"}),
		unmet: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_unmet_constraints_total",
			Help: "Anchors and blocking rules that could not be satisfied",
		}, []string{"kind"}),
		excluded: f.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_repetition_excluded_total",
			Help: "Questions held back by the repetition filter",
		}),
		exposures: f.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_exposures_recorded_total",
			Help: "Exposure records written to the ledger",
		}),
		exposureErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_exposure_record_errors_total",
			Help: "Failed exposure writes",
		}),
	}
}

// The methods below are nil-safe so the engine can run without metrics.

func (m *Metrics) ObserveSequence(strategy string, preview bool, d time.Duration) {
	if m == nil {
		return
	}
	p := "false"
	if preview {
		p = "true"
	}
	m.sequences.WithLabelValues(strategy, p).Inc()
	m.sequenceDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) Unmet(kind string) {
	if m == nil {
		return
	}
	m.unmet.WithLabelValues(kind).Inc()
}

func (m *Metrics) Excluded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.excluded.Add(float64(n))
}

func (m *Metrics) ExposureRecorded() {
	if m == nil {
		return
	}
	m.exposures.Inc()
}

func (m *Metrics) ExposureFailed() {
	if m == nil {
		return
	}
	m.exposureErrors.Inc()
}
