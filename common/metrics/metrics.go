package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bookings counts booking attempts by kind ("loan"|"reservation") and
// result ("ok"|"conflict"|"rejected"|"error").
var Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loanengine",
	Name:      "bookings_total",
	Help:      "Booking attempts by kind and result",
}, []string{"kind", "result"})

// Conflicts counts rejected bookings that lost to an overlapping window.
var Conflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "loanengine",
	Name:      "conflicts_total",
	Help:      "Bookings rejected because of an overlapping window",
})

// LedgerEvents counts appended ledger events by type.
var LedgerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loanengine",
	Name:      "ledger_events_total",
	Help:      "Ledger events appended by event type",
}, []string{"event_type"})

// CalendarReads counts calendar projections by source ("cache"|"db").
var CalendarReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loanengine",
	Name:      "calendar_reads_total",
	Help:      "Calendar month view reads by source",
}, []string{"source"})

// RequestDuration observes core operation latency.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "loanengine",
	Name:      "request_duration_seconds",
	Help:      "Core operation duration in seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// ObserveDuration records the elapsed time for an operation.
func ObserveDuration(operation string, start time.Time) {
	RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
