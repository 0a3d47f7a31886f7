package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 邀请生命周期事件计数
	InvitationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitation_events_total",
			Help: "Invitation lifecycle transitions",
		},
		[]string{"event"}, // event: created, accepted, cancelled, expired, mismatch
	)

	// 乐观锁冲突计数
	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "Writes rejected because the stored version moved",
		},
		[]string{"entity"}, // entity: task, column_schema
	)

	// 限流拒绝计数
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// 事件发布失败计数
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Domain events that could not be published",
		},
		[]string{"routing_key"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementInvitationEvent 增加邀请事件计数
func IncrementInvitationEvent(event string) {
	InvitationEvents.WithLabelValues(event).Inc()
}

// IncrementVersionConflict 增加版本冲突计数
func IncrementVersionConflict(entity string) {
	VersionConflicts.WithLabelValues(entity).Inc()
}

// IncrementRateLimited 增加限流计数
func IncrementRateLimited(route string) {
	RateLimited.WithLabelValues(route).Inc()
}

// IncrementEventPublishFailure 增加事件发布失败计数
func IncrementEventPublishFailure(routingKey string) {
	EventPublishFailures.WithLabelValues(routingKey).Inc()
}
