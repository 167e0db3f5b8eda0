package transfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for finished transfers.
const (
	outcomeFinished = "finished"
	outcomeAbnormal = "abnormal"
)

var (
	transfersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curlfetch_transfers_started_total",
		Help: "Total transfer processes spawned",
	})

	transfersFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curlfetch_transfers_finished_total",
			Help: "Total transfers settled by the sentinel, by outcome",
		},
		[]string{"outcome"},
	)

	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curlfetch_transfer_duration_seconds",
			Help:    "Wall time from spawn to settlement",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	headerBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curlfetch_header_bytes_forwarded_total",
		Help: "Header bytes forwarded to consumers after CR removal",
	})

	bodyBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curlfetch_body_bytes_forwarded_total",
		Help: "Body bytes forwarded to consumers",
	})
)

// recordSettled records metrics for a transfer the sentinel acted on.
func recordSettled(outcome string, seconds float64) {
	transfersFinished.WithLabelValues(outcome).Inc()
	transferDuration.WithLabelValues(outcome).Observe(seconds)
}
