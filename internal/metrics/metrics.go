// Package metrics exposes the seat server's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements seatstore.Observer and records broadcast and HTTP
// activity.
type Metrics struct {
	gatherer prometheus.Gatherer

	selects     *prometheus.CounterVec
	releases    prometheus.Counter
	bookings    *prometheus.CounterVec
	seatsBooked prometheus.Counter
	expired     prometheus.Counter
	broadcasts  *prometheus.CounterVec
	tripsSent   prometheus.Histogram
	requests    *prometheus.HistogramVec
}

// New registers the collectors on reg.  Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		selects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_select_total",
			Help: "Seat select attempts by outcome",
		}, []string{"outcome"}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Name: "seat_release_total",
			Help: "Seats released by their holder",
		}),
		bookings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_total",
			Help: "Booking attempts by outcome",
		}, []string{"outcome"}),
		seatsBooked: f.NewCounter(prometheus.CounterOpts{
			Name: "seats_booked_total",
			Help: "Seats sold",
		}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Name: "seat_holds_expired_total",
			Help: "Holds released by the expiry sweep",
		}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_broadcast_total",
			Help: "Seat update broadcasts by outcome",
		}, []string{"outcome"}),
		tripsSent: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "seat_broadcast_trips",
			Help:    "Trips carried per broadcast",
			Buckets: []float64{1, 5, 10, 25, 50},
		}),
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) SeatSelected(ok bool) {
	if ok {
		m.selects.WithLabelValues("ok").Inc()
		return
	}
	m.selects.WithLabelValues("unavailable").Inc()
}

func (m *Metrics) SeatReleased() { m.releases.Inc() }

func (m *Metrics) BookingCommitted(seats int) {
	m.bookings.WithLabelValues("committed").Inc()
	m.seatsBooked.Add(float64(seats))
}

func (m *Metrics) BookingRejected() { m.bookings.WithLabelValues("rejected").Inc() }

func (m *Metrics) HoldsExpired(n int) { m.expired.Add(float64(n)) }

// BroadcastPublished records a successful broadcast of trips trips.
func (m *Metrics) BroadcastPublished(trips int) {
	m.broadcasts.WithLabelValues("published").Inc()
	m.tripsSent.Observe(float64(trips))
}

// BroadcastFailed records a failed publish.
func (m *Metrics) BroadcastFailed() { m.broadcasts.WithLabelValues("failed").Inc() }

// RequestObserved records one served HTTP request.
func (m *Metrics) RequestObserved(method, route string, status int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(took.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
