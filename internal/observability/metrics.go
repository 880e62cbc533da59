package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsTotal          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_ops", Name: "ride_polls_total", Help: "Total ride feed poll cycles"})
	PollFailures        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_ops", Name: "ride_poll_failures_total", Help: "Poll cycles that failed and retained the previous ride set"})
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_ops", Name: "chat_subscriptions_active", Help: "Live chat message subscriptions"})
	MessagesSent        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_ops", Name: "chat_messages_sent_total", Help: "Messages accepted by the send path"})
	SendFailures        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_ops", Name: "chat_send_failures_total", Help: "Message sends rejected by the persistence layer"})
	FeedInvalidations   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_ops", Name: "ride_feed_invalidations_total", Help: "Forced early polls triggered by admin mutations"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_ops", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_ops",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
