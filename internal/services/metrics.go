package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("campuslink/services")

var (
	votesAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campuslink",
		Name:      "votes_applied_total",
		Help:      "Votes applied, by target, direction and resulting state",
	}, []string{"target", "direction", "state"})

	voteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campuslink",
		Name:      "vote_duration_seconds",
		Help:      "Latency of the vote read-modify-write including lock wait",
		Buckets:   prometheus.DefBuckets,
	}, []string{"target"})

	counterSyncFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campuslink",
		Name:      "comment_counter_sync_failures_total",
		Help:      "Comment counter updates that failed after the comment write",
	})

	counterRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campuslink",
		Name:      "comment_counter_repairs_total",
		Help:      "Comment counter recounts, by result (fixed, unchanged, error, dropped)",
	}, []string{"result"})

	membershipChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campuslink",
		Name:      "membership_changes_total",
		Help:      "Event registrations and study group membership changes, by kind and result",
	}, []string{"kind", "result"})
)
