// Package metrics provides Prometheus metrics for the scheduler client: poll
// loops, lifecycle actions and HTTP calls to the scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
	OutcomeRejected  = "rejected"
)

var (
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedctl_polls_total",
			Help: "Total number of poll fetches by view and outcome",
		},
		[]string{"view", "outcome"},
	)
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedctl_poll_duration_seconds",
			Help:    "Duration of poll fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)
	ActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedctl_active_pollers",
			Help: "Number of polling controllers currently running",
		},
	)
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedctl_actions_total",
			Help: "Total number of lifecycle actions by action and outcome",
		},
		[]string{"action", "outcome"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedctl_http_requests_total",
			Help: "Total number of HTTP requests sent to the scheduler",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedctl_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordPoll(view string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	PollsTotal.WithLabelValues(view, outcome).Inc()
	PollDuration.WithLabelValues(view).Observe(duration.Seconds())
}

func RecordPollDiscarded(view string) {
	PollsTotal.WithLabelValues(view, OutcomeDiscarded).Inc()
}

func RecordAction(action, outcome string) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
