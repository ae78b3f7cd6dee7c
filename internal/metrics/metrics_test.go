package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SeatSelected(true)
	m.SeatSelected(false)
	m.BookingCommitted(3)
	m.HoldsExpired(2)
	m.BroadcastPublished(4)
	m.RequestObserved("POST", "/api/book", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`seat_select_total{outcome="ok"} 1`,
		`seat_select_total{outcome="unavailable"} 1`,
		`seats_booked_total 3`,
		`seat_holds_expired_total 2`,
		`seat_broadcast_total{outcome="published"} 1`,
		`http_request_duration_seconds_count{method="POST",route="/api/book",status="200"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
