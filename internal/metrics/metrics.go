package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes.
const (
	OutcomeSent      = "sent"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

var (
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_deliveries_total",
		Help: "Work item deliveries by outcome.",
	}, []string{"outcome"})

	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_failures_total",
		Help: "Failed deliveries by failure kind.",
	}, []string{"kind", "detail"})

	HeartbeatExtensionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_heartbeat_extensions_total",
		Help: "Visibility extension attempts by result.",
	}, []string{"result"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "processor_pipeline_duration_seconds",
		Help:    "Wall time of a successful pipeline run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	RouterRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_requests_total",
		Help: "Inbound initiate-conversation requests by channel and response status.",
	}, []string{"channel", "status"})
)

// ObserveHeartbeat counts one visibility extension attempt.
func ObserveHeartbeat(err error) {
	if err != nil {
		HeartbeatExtensionsTotal.WithLabelValues("error").Inc()
		return
	}
	HeartbeatExtensionsTotal.WithLabelValues("ok").Inc()
}
