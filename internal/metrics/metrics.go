package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redemptions counts code submissions by result
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_redemptions_total",
			Help: "Movie code submissions",
		},
		[]string{"result"}, // found or not_found
	)

	// CodeUnlocks counts how often the click threshold was reached
	CodeUnlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviebot_code_unlocks_total",
			Help: "Times a user unlocked code entry",
		},
	)

	// BroadcastMessages counts single-recipient broadcast sends
	BroadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_broadcast_messages_total",
			Help: "Broadcast messages sent to individual users",
		},
		[]string{"status"}, // success or failure
	)

	// JoinRequests counts processed channel join requests
	JoinRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_join_requests_total",
			Help: "Channel join requests handled by the auto-approver",
		},
		[]string{"status"}, // approved, failed or ignored
	)

	// DroppedUpdates counts updates that never reached a handler
	DroppedUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_dropped_updates_total",
			Help: "Updates dropped before handling",
		},
		[]string{"reason"}, // queue_full or stopped
	)

	// UpdateDuration tracks how long a single update takes to handle
	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "moviebot_update_duration_seconds",
			Help: "Duration of update handling in seconds",
			Buckets: []float64{
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				5.0,   // 5s
				30.0,  // 30s
			},
		},
		[]string{"kind"}, // message or join_request
	)
)

// ObserveUpdate records the duration of an update
func ObserveUpdate(kind string, seconds float64) {
	UpdateDuration.WithLabelValues(kind).Observe(seconds)
}
