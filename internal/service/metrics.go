package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	flagEvaluations *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	ruleMatches     *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// metrics is registered once at package init; all services in the process
// share the counters.
var metrics = registerMetrics()

func registerMetrics() *serviceMetrics {
	return &serviceMetrics{
		flagEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "targeting_flag_evaluations_total",
			Help: "Total number of flag evaluations, partitioned by flag and outcome.",
		}, []string{"flag_key", "outcome"}),
		assignments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "targeting_experiment_assignments_total",
			Help: "Total number of assignment decisions, partitioned by experiment, variant and whether the assignment was newly persisted.",
		}, []string{"experiment_key", "variant_key", "new"}),
		ruleMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "targeting_rule_matches_total",
			Help: "Total number of matched rules, partitioned by rule type.",
		}, []string{"rule_type"}),
		errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "targeting_evaluation_errors_total",
			Help: "Total number of evaluation-path errors, partitioned by type.",
		}, []string{"type"}),
	}
}
