package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinRequestOutcomes counts submit and decide results by outcome.
	JoinRequestOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_join_request_outcomes_total",
		Help: "Join request submissions and decisions by operation and outcome",
	}, []string{"operation", "outcome"})

	// MembershipRemovals counts members leaving or being removed.
	MembershipRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_membership_removals_total",
		Help: "Memberships deactivated, by who initiated it",
	}, []string{"initiator"})

	// CapacityRepairs counts pods whose available spots had drifted.
	CapacityRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podshare_capacity_repairs_total",
		Help: "Pods whose available spot count was corrected by reconciliation",
	})

	// NotificationDeliveries counts sink deliveries by sink and result.
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_notification_deliveries_total",
		Help: "Notification deliveries by sink and result",
	}, []string{"sink", "result"})

	// NotificationsDropped counts events dropped before delivery.
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_notifications_dropped_total",
		Help: "Notification events dropped, by reason",
	}, []string{"reason"})

	// NotificationQueueDepth is the number of events waiting for a worker.
	NotificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podshare_notification_queue_depth",
		Help: "Events waiting in the notification queue",
	})

	// DatabaseQueryLatency records query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "podshare_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RedisErrors counts Redis command failures by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_redis_errors_total",
		Help: "Redis command errors by command",
	}, []string{"command"})

	// CacheLookups counts cache hits and misses by cache name.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podshare_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})
)
