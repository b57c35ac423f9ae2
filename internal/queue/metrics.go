package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Pending tasks per queue as of the last stats request",
		},
		[]string{"queue"},
	)
	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_processed_total",
			Help: "Total tasks processed grouped by type and status",
		},
		[]string{"kind", "status"},
	)
	QueueArchivedSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_archived_size",
			Help: "Tasks that exhausted their retries, per queue",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth, QueueProcessedTotal, QueueArchivedSize)
}
