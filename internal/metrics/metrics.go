// Package metrics defines the Prometheus instruments the booking engine
// exports on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BookingsTotal counts booking attempts by outcome (confirmed,
// waitlisted, rejected, duplicate, timeout).
var BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "bookings",
	Name:      "requests_total",
	Help:      "Total booking requests by outcome.",
}, []string{"outcome"})

var CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "bookings",
	Name:      "cancellations_total",
	Help:      "Total cancellations, split by whether the deadline had passed.",
}, []string{"late"})

var PromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "waitlist",
	Name:      "promotions_total",
	Help:      "Total waitlist entries promoted to confirmed.",
})

// PromotionSkipsTotal counts waitlisted bookings passed over at
// promotion time because no payment source resolved.
var PromotionSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "waitlist",
	Name:      "promotion_skips_total",
	Help:      "Total waitlist entries skipped during promotion, by policy applied.",
}, []string{"policy"})

var CreditDebitsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "credits",
	Name:      "debits_total",
	Help:      "Total class-pack credits debited.",
})

var CreditRefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "credits",
	Name:      "refunds_total",
	Help:      "Total class-pack credit refunds, by reason.",
}, []string{"reason"})

var NoShowsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "bookings",
	Name:      "no_shows_total",
	Help:      "Total bookings marked as no-shows.",
})

// SessionsHaltedTotal counts sessions frozen after a counter
// consistency check failed.
var SessionsHaltedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "sessions",
	Name:      "halted_total",
	Help:      "Total sessions halted due to counter inconsistencies.",
})

var LockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "classfit",
	Subsystem: "database",
	Name:      "lock_timeouts_total",
	Help:      "Total transactions aborted by the row-lock timeout.",
})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "classfit",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
}, []string{"method", "route", "status"})
