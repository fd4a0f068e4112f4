// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Booking outcomes: confirmed, slot_unavailable, invalid_range,
	// user_not_found, storage_conflict, storage_unavailable, invalid_request.
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_booking_retries_total",
			Help: "Booking transactions retried after a storage conflict",
		},
	)

	BookingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turf_booking_duration_seconds",
			Help:    "Time spent in the booking unit of work, retries included",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnitsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_units_reserved_total",
			Help: "Hourly units claimed by confirmed bookings",
		},
	)

	// Maintenance units by result: marked, already_maintenance,
	// held_by_reservation, cleared.
	MaintenanceUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_maintenance_units_total",
			Help: "Units processed by maintenance overrides by result",
		},
		[]string{"result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_events_published_total",
			Help: "Broker publications by queue and status",
		},
		[]string{"queue", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turf_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordBooking counts a booking outcome.
func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

// RecordMaintenance adds n units under result.
func RecordMaintenance(result string, n int) {
	if n > 0 {
		MaintenanceUnits.WithLabelValues(result).Add(float64(n))
	}
}

// RecordPublish counts a broker publication.
func RecordPublish(queue string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(queue, status).Inc()
}
