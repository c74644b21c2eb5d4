package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbooking_booking_attempts_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatbooking_booking_tx_seconds",
			Help:    "Duration of booking transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatbooking_sweep_released_total",
			Help: "Expired bookings released by the reaper",
		},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbooking_requests_total",
			Help: "HTTP requests by route, code and method",
		},
		[]string{"route", "code", "method"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatbooking_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
