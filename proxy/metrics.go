package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// prometheusProxyAnswers counts verdicts obtained from the oracle
	prometheusProxyAnswers prometheus.Counter
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusProxyAnswers = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slpdag",
			Subsystem: "proxy",
			Name:      "answers",
			Help:      "Number of verdicts obtained from the validation oracle",
		},
	)
}
