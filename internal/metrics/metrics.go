package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics instruments the poll engine's hot paths.
type EngineMetrics struct {
	SpinsStarted    prometheus.Counter
	VotesApplied    prometheus.Counter
	VotesDropped    *prometheus.CounterVec
	DuplicateEvents prometheus.Counter
	VoteDuration    prometheus.Histogram
}

// Drop reasons for VotesDropped.
const (
	DropNoSession = "no_session"
	DropNoOption  = "no_option"
	DropUpstream  = "upstream"
)

// New registers the engine metrics on reg. Tests pass a fresh
// prometheus.NewRegistry so parallel engines never collide.
func New(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)

	return &EngineMetrics{
		SpinsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "luncheon",
			Subsystem: "engine",
			Name:      "spins_total",
			Help:      "Total number of poll sessions created",
		}),
		VotesApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "luncheon",
			Subsystem: "engine",
			Name:      "votes_applied_total",
			Help:      "Total number of votes committed to a session",
		}),
		VotesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luncheon",
			Subsystem: "engine",
			Name:      "votes_dropped_total",
			Help:      "Votes that no-opped, by reason",
		}, []string{"reason"}),
		DuplicateEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "luncheon",
			Subsystem: "engine",
			Name:      "duplicate_events_total",
			Help:      "Inbound events dropped as in-flight duplicates",
		}),
		VoteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "luncheon",
			Subsystem: "engine",
			Name:      "vote_duration_seconds",
			Help:      "End-to-end vote application time, including store retries",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
}
