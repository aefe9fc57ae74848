package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by kind and outcome",
	}, []string{"kind", "outcome"})

	MutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_mutation_duration_seconds",
		Help:    "Time spent processing a cart mutation",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ValidationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_validation_errors_total",
		Help: "Validation errors returned to shoppers, by kind",
	}, []string{"kind"})

	ReconcileChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconcile_rule_changes_total",
		Help: "Discount rules added or removed by reconciliation",
	}, []string{"action"})

	PredicateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_discount_predicate_failures_total",
		Help: "Discount predicate evaluations that failed and were treated as invalid",
	})

	SnapshotCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_snapshot_cache_lookups_total",
		Help: "Snapshot cache lookups by result",
	}, []string{"result"})
)

// Outcome labels for MutationsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
