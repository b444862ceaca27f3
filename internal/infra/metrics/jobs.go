package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsStartedTotal, jobsFinishedTotal, targetOutcomesTotal) }

var jobsStartedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bulk_jobs_started_total",
		Help: "Total number of bulk job runs started, labeled by kind.",
	},
	[]string{"kind"},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bulk_jobs_finished_total",
		Help: "Total number of bulk jobs reaching a terminal state, labeled by kind and state.",
	},
	[]string{"kind", "state"}, // 'completed', 'failed'
)

var targetOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bulk_target_outcomes_total",
		Help: "Per-target outcomes across all bulk jobs, labeled by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

func IncJobStarted(kind string) {
	jobsStartedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobFinished(kind, state string) {
	jobsFinishedTotal.WithLabelValues(norm(kind), norm(state)).Inc()
}

func IncTargetOutcome(kind, outcome string) {
	targetOutcomesTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}
