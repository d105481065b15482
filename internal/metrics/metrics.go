package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the application's metric registry, exposed on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// WebhookRequests counts webhook deliveries per source and outcome
	// (accepted, duplicate, rejected, invalid).
	WebhookRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_requests_total",
		Help: "Webhook deliveries by source and outcome.",
	}, []string{"source", "outcome"})

	// TasksCreated counts stored tasks per priority.
	TasksCreated = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_created_total",
		Help: "Tasks created, by priority.",
	}, []string{"priority"})

	// TasksOpen tracks the current number of open tasks per priority.
	TasksOpen = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tasks_open",
		Help: "Open tasks, by priority.",
	}, []string{"priority"})

	// SoftCapAdvisories counts operator advisories for the task soft cap.
	SoftCapAdvisories = factory.NewCounter(prometheus.CounterOpts{
		Name: "task_soft_cap_advisories_total",
		Help: "Times the open task count crossed the configured soft cap.",
	})

	// InboxPending tracks deliveries waiting in the durable inbox.
	InboxPending = factory.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_pending",
		Help: "Webhook deliveries waiting to be processed.",
	})

	// ExternalRequestDuration observes latency of outbound provider calls.
	ExternalRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "external_request_duration_seconds",
		Help:    "Latency of outbound calls to external services.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	// ExternalRequests counts outbound provider calls per outcome.
	ExternalRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "external_request_total",
		Help: "Outbound calls to external services by outcome.",
	}, []string{"service", "outcome"})
)

// ObserveExternal records one outbound call.
func ObserveExternal(service string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalRequestDuration.WithLabelValues(service).Observe(seconds)
	ExternalRequests.WithLabelValues(service, outcome).Inc()
}
