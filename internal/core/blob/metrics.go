package blob

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	deletedTotal *prometheus.CounterVec
	deadTotal    prometheus.Counter
	pending      prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		deletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrbank",
			Subsystem: "blob_sweeper",
			Name:      "delete_total",
			Help:      "Total number of stored object deletions attempted by the sweeper.",
		}, []string{"result"}),
		deadTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hrbank",
			Subsystem: "blob_sweeper",
			Name:      "dead_total",
			Help:      "Total number of deletions that exhausted their attempts.",
		}),
		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "hrbank",
			Subsystem: "blob_sweeper",
			Name:      "pending",
			Help:      "Current number of deletions waiting in the outbox.",
		}),
	}
})
