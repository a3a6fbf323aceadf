package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in observability. SuspiciousReasons labels stay bounded:
// callers feed it Decision.MetricReasons, never raw reason strings.
var (
	CheckinDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classpin_checkin_decisions_total",
		Help: "Check-in decisions by terminal status.",
	}, []string{"status"})

	SuspiciousReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classpin_checkin_suspicious_reasons_total",
		Help: "Individual heuristic reasons on suspicious check-ins.",
	}, []string{"reason"})

	CheckinDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "classpin_checkin_distance_meters",
		Help:    "Distance between check-in location and lesson target.",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})
)
