package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	socketEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_socket_events_total",
			Help: "Total number of socket events, by event name and direction.",
		},
		[]string{"event", "direction"},
	)
	socketReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_socket_reconnects_total",
			Help: "Total number of socket reconnection attempts.",
		},
	)
	socketConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_socket_connected",
			Help: "Whether the socket is currently connected (0 or 1).",
		},
	)
	httpRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_retries_total",
			Help: "Total number of HTTP request retries, by method and path.",
		},
		[]string{"method", "path"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total number of HTTP requests issued, by method, path and outcome.",
		},
		[]string{"method", "path", "outcome"},
	)
	uploadFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_upload_failures_total",
			Help: "Total number of failed media uploads.",
		},
	)
	pendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_pending_queue_depth",
			Help: "Number of messages waiting in the offline queue.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		socketEventsTotal,
		socketReconnectsTotal,
		socketConnected,
		httpRetriesTotal,
		httpRequestsTotal,
		uploadFailuresTotal,
		pendingQueueDepth,
	)
}

func IncSocketEvent(event, direction string) {
	socketEventsTotal.WithLabelValues(event, direction).Inc()
}

func IncSocketReconnect() {
	socketReconnectsTotal.Inc()
}

func SetSocketConnected(connected bool) {
	if connected {
		socketConnected.Set(1)
		return
	}
	socketConnected.Set(0)
}

func IncHTTPRetry(method, path string) {
	httpRetriesTotal.WithLabelValues(method, path).Inc()
}

func IncHTTPRequest(method, path, outcome string) {
	httpRequestsTotal.WithLabelValues(method, path, outcome).Inc()
}

func IncUploadFailure() {
	uploadFailuresTotal.Inc()
}

func SetPendingQueueDepth(depth int) {
	pendingQueueDepth.Set(float64(depth))
}
