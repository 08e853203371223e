// Package metrics provides Prometheus metrics for monitoring the follow-up
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/threadkeep/threadkeep/internal/followup"
)

var (
	PingsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadkeep_pings_sent_total",
			Help: "Total number of check-in pings sent",
		},
		[]string{"priority"},
	)
	TargetDateNotices = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadkeep_target_date_notices_total",
			Help: "Total number of target-date approaching notices sent",
		},
	)
	EscalationAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadkeep_escalation_alerts_total",
			Help: "Total number of escalation alerts sent to the admin",
		},
	)
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadkeep_resolutions_total",
			Help: "Total number of followups resolved",
		},
		[]string{"via"},
	)
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadkeep_delivery_failures_total",
			Help: "Total number of notification delivery failures",
		},
		[]string{"kind"},
	)
	PurgeWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadkeep_purge_warnings_total",
			Help: "Total number of purge warnings queued",
		},
	)
	Purges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadkeep_purges_total",
			Help: "Total number of followups purged by the sweeper",
		},
	)
	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadkeep_persist_failures_total",
			Help: "Total number of failed persistence sync attempts",
		},
	)
	FollowupsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threadkeep_followups",
			Help: "Current number of followups by state",
		},
		[]string{"state"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadkeep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threadkeep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordPing(priority followup.Priority) {
	PingsSent.WithLabelValues(string(priority)).Inc()
}

func RecordResolution(via string) {
	Resolutions.WithLabelValues(via).Inc()
}

func RecordDeliveryFailure(permanent bool) {
	kind := "transient"
	if permanent {
		kind = "permanent"
	}
	DeliveryFailures.WithLabelValues(kind).Inc()
}

func UpdateStateGauges(followups []*followup.Followup) {
	counts := map[followup.State]int{
		followup.StateActive:           0,
		followup.StateBlocked:          0,
		followup.StateWaitingOnCreator: 0,
		followup.StateResolved:         0,
	}
	for _, f := range followups {
		counts[f.State]++
	}
	for state, count := range counts {
		FollowupsByState.WithLabelValues(string(state)).Set(float64(count))
	}
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
