// Package metrics exposes Prometheus counters for the booking workflow.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	BookingsInitiated    prometheus.Counter
	BookingConflicts     prometheus.Counter
	PaymentsVerified     prometheus.Counter
	PaymentsRejected     prometheus.Counter
	SlotsReleased        prometheus.Counter
	DanglingSlotReleases prometheus.Counter
}

// New registers the workflow counters. Pass nil to use a private registry,
// which tests rely on to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		BookingsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_initiated_total",
			Help: "Booking attempts that claimed a slot and created an appointment.",
		}),
		BookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_slot_conflict_total",
			Help: "Booking attempts rejected because the slot was already claimed.",
		}),
		PaymentsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_verified_total",
			Help: "Payment callbacks with a valid signature.",
		}),
		PaymentsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_rejected_total",
			Help: "Payment callbacks rejected for an invalid signature.",
		}),
		SlotsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slot_released_total",
			Help: "Slots released after cancellation or payment failure.",
		}),
		DanglingSlotReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slot_release_failed_total",
			Help: "Failed slot releases leaving a slot incorrectly held.",
		}),
	}

	reg.MustRegister(
		m.BookingsInitiated,
		m.BookingConflicts,
		m.PaymentsVerified,
		m.PaymentsRejected,
		m.SlotsReleased,
		m.DanglingSlotReleases,
	)

	return m
}
