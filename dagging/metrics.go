package dagging

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simpleledger/slpdag/util"
)

// Prometheus metrics collectors
var (
	// prometheusDaggingJobsRun counts finished job runs by stop reason
	prometheusDaggingJobsRun *prometheus.CounterVec

	// prometheusDaggingJobDuration measures job run time by stop reason
	prometheusDaggingJobDuration *prometheus.HistogramVec

	// prometheusDaggingTxFetched counts transactions downloaded by jobs
	prometheusDaggingTxFetched prometheus.Counter

	// prometheusDaggingConclusions counts node verdicts by validity code
	prometheusDaggingConclusions *prometheus.CounterVec

	// prometheusDaggingGraphSize tracks the number of registered graph nodes
	prometheusDaggingGraphSize prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusDaggingJobsRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slpdag",
			Subsystem: "dagging",
			Name:      "jobs_run",
			Help:      "Number of validation job runs completed, by stop reason",
		},
		[]string{"reason"},
	)

	prometheusDaggingJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slpdag",
			Subsystem: "dagging",
			Name:      "job_duration_seconds",
			Help:      "Histogram of validation job run time, by stop reason",
			Buckets:   util.MetricsBucketsSeconds,
		},
		[]string{"reason"},
	)

	prometheusDaggingTxFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slpdag",
			Subsystem: "dagging",
			Name:      "tx_fetched",
			Help:      "Number of transactions downloaded by validation jobs",
		},
	)

	prometheusDaggingConclusions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slpdag",
			Subsystem: "dagging",
			Name:      "conclusions",
			Help:      "Number of node verdicts reached, by validity",
		},
		[]string{"validity"},
	)

	prometheusDaggingGraphSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slpdag",
			Subsystem: "dagging",
			Name:      "graph_size",
			Help:      "Number of transaction nodes currently registered in the graph",
		},
	)
}
