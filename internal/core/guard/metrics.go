package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionguard_decisions_total",
		Help: "Guard decisions by action and result",
	}, []string{"action", "result"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionguard_rate_limited_total",
		Help: "Requests refused by the rate limiter",
	}, []string{"action"})

	executionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "actionguard_execution_duration_seconds",
		Help:    "Wall-clock time of sandboxed evaluations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
	})

	pendingChallenges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "actionguard_pending_challenges",
		Help: "Actions waiting for a challenge reply",
	})

	auditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actionguard_audit_failures_total",
		Help: "Audit records that could not be written",
	})
)

func observeOutcome(o Outcome) {
	result := "ok"
	if o.Failure != nil {
		result = string(o.Failure.Kind)
	}
	decisionsTotal.WithLabelValues(string(o.Action), result).Inc()
	if o.Failure != nil && o.Failure.Kind == RateLimited {
		rateLimitedTotal.WithLabelValues(string(o.Action)).Inc()
	}
}
