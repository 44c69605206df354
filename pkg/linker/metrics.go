package linker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for resolution runs. A nil *Metrics
// is a valid no-op receiver so callers can leave metrics unwired.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunSeconds        prometheus.Histogram
	MentionsTotal     *prometheus.CounterVec
	LinksWrittenTotal *prometheus.CounterVec
	MatchConfidence   *prometheus.HistogramVec
}

// NewMetrics creates resolution metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linker_resolution_runs_total",
				Help: "Resolution runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		RunSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linker_resolution_run_seconds",
				Help:    "Wall-clock duration of resolution runs",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		MentionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linker_mentions_total",
				Help: "Mentions processed by result",
			},
			[]string{"entity_type", "result"},
		),
		LinksWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linker_links_written_total",
				Help: "New entity link rows written by review status",
			},
			[]string{"entity_type", "status"},
		),
		MatchConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linker_match_confidence",
				Help:    "Confidence scores of matched mentions",
				Buckets: []float64{50, 60, 70, 80, 90, 95, 100},
			},
			[]string{"match_type"},
		),
	}
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// runOutcomeError is the RunsTotal label for runs that returned an error
// instead of reaching a terminal Outcome.
const runOutcomeError = "error"

func (m *Metrics) observeRun(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(outcome)).Inc()
	m.RunSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRunError(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(runOutcomeError).Inc()
	m.RunSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) observeMention(entityType EntityType, result string) {
	if m == nil {
		return
	}
	m.MentionsTotal.WithLabelValues(string(entityType), result).Inc()
}

func (m *Metrics) observeLink(entityType EntityType, status LinkStatus) {
	if m == nil {
		return
	}
	m.LinksWrittenTotal.WithLabelValues(string(entityType), string(status)).Inc()
}

func (m *Metrics) observeConfidence(matchType MatchType, confidence int) {
	if m == nil {
		return
	}
	m.MatchConfidence.WithLabelValues(string(matchType)).Observe(float64(confidence))
}
