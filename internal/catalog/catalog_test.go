package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

const sample = `
routes:
  - {id: R001, from_city: Ha Noi, to_city: Hai Phong, base_price: 150000}
  - {id: R002, from_city: Ha Noi, to_city: Da Nang, base_price: 450000}
  - {id: R003, from_city: Da Nang, to_city: Ha Noi, base_price: 450000}
trips:
  - {id: T002, route_id: R001, date: "2026-11-01", departure_time: "13:30"}
  - {id: T001, route_id: R001, date: "2026-11-01", departure_time: "07:00", total_seats: 34}
  - {id: T003, route_id: R001, date: "2026-10-30", departure_time: "09:00"}
  - {id: T004, route_id: R002, date: "2026-11-01", departure_time: "19:00"}
`

func mustParse(t *testing.T) *Service {
	t.Helper()
	s, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return s
}

func TestListCities(t *testing.T) {
	s := mustParse(t)
	c, _ := s.ListCities(context.Background())
	if strings.Join(c.FromCities, ",") != "Da Nang,Ha Noi" {
		t.Fatalf("unexpected from cities %v", c.FromCities)
	}
	if strings.Join(c.ToCities, ",") != "Da Nang,Ha Noi,Hai Phong" {
		t.Fatalf("unexpected to cities %v", c.ToCities)
	}
}

func TestSearchRoutes_CaseInsensitive(t *testing.T) {
	s := mustParse(t)
	routes, _ := s.SearchRoutes(context.Background(), "ha noi", "")
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	routes, _ = s.SearchRoutes(context.Background(), " HA NOI ", "da nang")
	if len(routes) != 1 || routes[0].ID != "R002" {
		t.Fatalf("expected R002, got %+v", routes)
	}
	routes, _ = s.SearchRoutes(context.Background(), "Hue", "")
	if routes == nil || len(routes) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", routes)
	}
}

func TestListDates_SortedUnique(t *testing.T) {
	s := mustParse(t)
	dates, err := s.ListDates(context.Background(), "R001")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(dates, ",") != "2026-10-30,2026-11-01" {
		t.Fatalf("unexpected dates %v", dates)
	}
	if _, err := s.ListDates(context.Background(), "R999"); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestSearchTrips_ByDeparture(t *testing.T) {
	s := mustParse(t)
	trips, err := s.SearchTrips(context.Background(), "R001", "2026-11-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 2 || trips[0].ID != "T001" || trips[1].ID != "T002" {
		t.Fatalf("unexpected trips %+v", trips)
	}
	if trips[1].TotalSeats != 40 {
		t.Fatalf("expected default seat count, got %d", trips[1].TotalSeats)
	}
}

func TestGetTripAndLookup(t *testing.T) {
	s := mustParse(t)
	if _, err := s.GetTrip(context.Background(), "nope"); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("expected ErrTripNotFound, got %v", err)
	}
	trip, ok := s.Lookup("T001")
	if !ok || trip.TotalSeats != 34 {
		t.Fatalf("unexpected lookup %+v %v", trip, ok)
	}
}

func TestNew_RejectsBadData(t *testing.T) {
	bad := []string{
		"routes: [{id: R1}, {id: R1}]",
		"routes: [{id: R1}]\ntrips: [{id: T1, route_id: R2}]",
		"routes: [{from_city: X}]",
	}
	for _, in := range bad {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoad_ShippedCatalog(t *testing.T) {
	s, err := Load("../../data/catalog.yaml")
	if err != nil {
		t.Fatalf("expected shipped catalog to load, got %v", err)
	}
	if _, ok := s.Lookup("T001"); !ok {
		t.Fatal("expected trip T001 in shipped catalog")
	}
}

func fastClient(url string) *Client {
	c := NewClient(url, nil)
	c.retryBase = time.Millisecond
	c.retryCap = 2 * time.Millisecond
	return c
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"route_id":"R001","dates":["2026-11-01"]}`))
	}))
	defer srv.Close()

	dates, err := fastClient(srv.URL).ListDates(context.Background(), "R001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(dates) != 1 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls and 1 date, got %d calls %v", calls, dates)
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"reason":"invalid_trip","message":"trip not found"}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).GetTrip(context.Background(), "T9")
	if reservation.Reason(err) != reservation.ReasonInvalidTrip {
		t.Fatalf("expected invalid_trip, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestClient_SearchTripsSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/trips" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"route_id":"R001"`) {
			t.Errorf("unexpected body %s", body)
		}
		_, _ = w.Write([]byte(`{"trips":[{"id":"T001","route_id":"R001","available_seats":12}]}`))
	}))
	defer srv.Close()

	trips, err := fastClient(srv.URL).SearchTrips(context.Background(), "R001", "2026-11-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 1 || trips[0].AvailableSeats != 12 {
		t.Fatalf("unexpected trips %+v", trips)
	}
}
