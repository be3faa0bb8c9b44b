package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collab_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_socket_connections",
		Help: "Open channel connections.",
	})

	WatchedRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_watched_rooms",
		Help: "Rooms with at least one watcher.",
	})

	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_messages_appended_total",
		Help: "Messages persisted, by message type.",
	}, []string{"type"})

	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_events_delivered_total",
		Help: "Server events queued to connections, by event type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_events_dropped_total",
		Help: "Events dropped because a connection's send buffer was full.",
	})

	RejectedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_rejected_events_total",
		Help: "Inbound channel events rejected, by error kind.",
	}, []string{"kind"})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_storage_errors_total",
		Help: "Storage failures reported as retryable, by operation.",
	}, []string{"op"})
)
