// Package metrics holds the Prometheus collectors for the workflow engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowTotal counts finished workflow operations by result kind ("ok" on success).
	WorkflowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspection",
			Subsystem: "workflow",
			Name:      "operations_total",
			Help:      "Workflow operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// WorkflowDuration observes workflow latency in seconds.
	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inspection",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Workflow operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// SecondaryFailures counts dependent steps that failed after the primary write committed.
	SecondaryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspection",
			Subsystem: "workflow",
			Name:      "secondary_failures_total",
			Help:      "Dependent writes that failed after the primary write committed",
		},
		[]string{"operation", "step"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspection",
			Subsystem: "notification",
			Name:      "dispatched_total",
			Help:      "Notification writes by outcome and result",
		},
		[]string{"outcome", "result"},
	)

	InspectionsMarkedOverdue = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inspection",
			Subsystem: "scheduler",
			Name:      "overdue_marked_total",
			Help:      "Inspections moved to overdue by the sweep",
		},
	)
)
