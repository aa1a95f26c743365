package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the scoring service, exposed on /metrics.
var (
	candidatesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phantomscan",
		Name:      "candidates_scored_total",
		Help:      "Candidates scored, by ecosystem and risk level.",
	}, []string{"ecosystem", "risk_level"})

	candidatesWatchlisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phantomscan",
		Name:      "candidates_watchlisted_total",
		Help:      "Candidates routed to the watchlist, by existence reason.",
	}, []string{"reason"})

	scoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "phantomscan",
		Name:      "score_distribution",
		Help:      "Distribution of total risk scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	evaluationOverloads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "phantomscan",
		Name:      "evaluation_overloads_total",
		Help:      "Evaluations aborted by the global deadline.",
	})
)
