package backup

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runsTotal *prometheus.CounterVec
	duration  prometheus.Histogram
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrbank",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Total number of backup requests by resulting status.",
		}, []string{"status"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hrbank",
			Subsystem: "backup",
			Name:      "serialization_seconds",
			Help:      "Time spent writing backup artifacts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
})
