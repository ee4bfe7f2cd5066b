package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	// deliveryOutcomes counts delivery attempts by channel and outcome
	// (sent, expired, retried, failed, throttled).
	deliveryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_outcomes_total",
			Help: "Delivery attempt outcomes by channel.",
		},
		[]string{"channel", "outcome"},
	)

	// resolvedMessages counts messages fanned out by the resolver stage.
	resolvedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_messages_resolved_total",
			Help: "Messages resolved into per-channel notifications.",
		},
	)

	// droppedPayloads counts undecodable queue payloads (never retried).
	droppedPayloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dropped_payloads_total",
			Help: "Malformed queue payloads dropped without retry.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(deliveryOutcomes, resolvedMessages, droppedPayloads)
}
