package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "conductor"

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed state transitions by entity and transition name",
		},
		[]string{"entity", "transition"},
	)

	TransitionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_conflicts_total",
			Help:      "Rejected transitions by entity and error kind",
		},
		[]string{"entity", "kind"},
	)

	ThrottleAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_acquire_total",
			Help:      "Throttle acquisition attempts by operation and result",
		},
		[]string{"op", "result"},
	)

	ThrottleInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_in_flight",
			Help:      "Throttle slots currently held per operation and endpoint",
		},
		[]string{"op", "endpoint"},
	)

	ReconcileActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Local changes applied by the reconciler",
		},
		[]string{"kind", "action"},
	)

	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Quota validations that failed, by quota name",
		},
		[]string{"name"},
	)

	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events emitted per sink",
		},
		[]string{"sink", "result"},
	)
)
