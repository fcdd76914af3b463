package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_webhook_events_total",
		Help: "Gateway webhook deliveries by event type and outcome",
	}, []string{"event", "result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_gateway_requests_total",
		Help: "Outbound payment gateway calls by operation and outcome",
	}, []string{"op", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freight_gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_refunds_total",
		Help: "Refund attempts by result",
	}, []string{"result"})

	Cleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_cleanups_total",
		Help: "Compensator runs by reason",
	}, []string{"reason"})

	ExpiredHolds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freight_sweeper_expired_holds_total",
		Help: "Abandoned reservations released by the hold sweeper",
	})

	OrphanCharges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freight_orphan_charges_total",
		Help: "Successful charges whose payment record no longer exists",
	})

	TransferFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freight_transfer_failures_total",
		Help: "Payout transfers reported failed or reversed by the gateway",
	})
)
