package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	marketPlanner = "market_planner"

	// Job metrics
	jobsCreatedTotal     = "jobs_created_total"
	jobTransitionsTotal  = "job_transitions_total"
	publishFailuresTotal = "publish_failures_total"
	jobsTimedOutTotal    = "jobs_timed_out_total"

	// Batch metrics
	batchLocationsTotal = "batch_locations_total"

	// Labels
	platformLabel = "platform"
	jobTypeLabel  = "job_type"
	statusLabel   = "status"
	outcomeLabel  = "outcome"
)

/**
* Metrics definition
**/
var jobsCreatedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: marketPlanner,
		Name:      jobsCreatedTotal,
		Help:      "number of scraping jobs created",
	},
	[]string{platformLabel, jobTypeLabel},
)

var jobTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: marketPlanner,
		Name:      jobTransitionsTotal,
		Help:      "number of job transitions partitioned by the status reached",
	},
	[]string{statusLabel},
)

var publishFailuresTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: marketPlanner,
		Name:      publishFailuresTotal,
		Help:      "number of work requests that could not be published",
	},
	[]string{platformLabel},
)

var jobsTimedOutTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: marketPlanner,
		Name:      jobsTimedOutTotal,
		Help:      "number of in progress jobs failed by the timeout scanner",
	},
)

var batchLocationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: marketPlanner,
		Name:      batchLocationsTotal,
		Help:      "number of locations handled by batch runs partitioned by outcome",
	},
	[]string{outcomeLabel},
)

func IncreaseJobsCreatedMetric(platform, jobType string) {
	jobsCreatedTotalMetric.With(prometheus.Labels{platformLabel: platform, jobTypeLabel: jobType}).Inc()
}

func IncreaseJobTransitionsMetric(status string) {
	jobTransitionsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func IncreasePublishFailuresMetric(platform string) {
	publishFailuresTotalMetric.With(prometheus.Labels{platformLabel: platform}).Inc()
}

func AddJobsTimedOutMetric(count int) {
	jobsTimedOutTotalMetric.Add(float64(count))
}

func IncreaseBatchLocationsMetric(outcome string) {
	batchLocationsTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsCreatedTotalMetric)
	prometheus.MustRegister(jobTransitionsTotalMetric)
	prometheus.MustRegister(publishFailuresTotalMetric)
	prometheus.MustRegister(jobsTimedOutTotalMetric)
	prometheus.MustRegister(batchLocationsTotalMetric)
}
