// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UnitsSentTotal counts units written by the sender, retransmissions included
	UnitsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_units_sent_total",
			Help: "Total number of units transmitted by the sender",
		},
	)

	// UnitsCorruptedTotal counts transmissions damaged by fault injection
	UnitsCorruptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_units_corrupted_total",
			Help: "Total number of transmitted units corrupted by fault injection",
		},
	)

	// AcksTotal counts acknowledgments that removed an outstanding unit
	AcksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_acks_total",
			Help: "Total number of acknowledgments applied by the sender",
		},
	)

	// UnitsReceivedTotal counts units evaluated by the receiver, by outcome
	UnitsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_units_received_total",
			Help: "Total number of units arriving at the receiver",
		},
		[]string{"outcome"}, // accepted | rejected | dropped
	)

	// DuplicatesTotal counts accepted units whose sequence number was already stored
	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_duplicates_total",
			Help: "Total number of duplicate units stored by the receiver",
		},
	)

	// ActiveSessions tracks receiver sessions in progress
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ferry_active_sessions",
			Help: "Number of receiver sessions in progress",
		},
	)

	// SessionDurationSeconds measures sender session duration
	SessionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ferry_session_duration_seconds",
			Help:    "Duration of completed sender sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
	)
)

// Outcome labels for UnitsReceivedTotal.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)
