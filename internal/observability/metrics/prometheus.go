package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	// NotificationsCreated counts persisted notifications by category.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications persisted, by category.",
		},
		[]string{"category"},
	)

	// ChannelOutcomes counts delivery outcomes by channel and status
	// (delivered, skipped, failed).
	ChannelOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_outcomes_total",
			Help: "Total number of channel delivery outcomes, by channel and status.",
		},
		[]string{"channel", "status"},
	)

	// ChannelDuration measures how long each channel dispatch took.
	ChannelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_channel_duration_seconds",
			Help:    "Histogram of channel dispatch duration in seconds, by channel.",
			Buckets: durationBuckets,
		},
		[]string{"channel"},
	)

	// PushTickets counts push gateway receipts by status (ok, error).
	PushTickets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_tickets_total",
			Help: "Total number of push gateway tickets, by status.",
		},
		[]string{"status"},
	)

	// TokensDeactivated counts device tokens switched off after a
	// DeviceNotRegistered receipt.
	TokensDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_push_tokens_deactivated_total",
			Help: "Total number of device tokens deactivated by gateway feedback.",
		},
	)
)

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveChannel records one channel dispatch.
func ObserveChannel(channel, status string, start time.Time) {
	ChannelOutcomes.WithLabelValues(channel, status).Inc()
	ChannelDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
}
