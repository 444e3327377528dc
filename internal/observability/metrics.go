package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesPostedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "share_commute", Name: "rides_posted_total", Help: "Total number of rides posted"})
	BookingsTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "share_commute", Name: "bookings_total", Help: "Total number of seats booked"})
	SessionsActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "share_commute", Name: "sessions_active", Help: "Number of sessions held in memory"})
	AvailableListSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "share_commute",
		Name:      "available_rides_listed",
		Help:      "Number of rides returned by an availability lookup",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
	})

	BookingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "share_commute", Name: "bookings_rejected_total", Help: "Booking attempts refused, by reason"},
		[]string{"reason"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "share_commute", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "share_commute",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
