package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_provider_failures_total",
		Help: "Calendar provider failures by operation",
	}, []string{"operation"})

	metricOutsideHours = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedule_outside_hours_total",
		Help: "Availability checks rejected by business hours before any provider call",
	})

	metricBookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})
)
