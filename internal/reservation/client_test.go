package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
)

func TestSelect_SendsTokenAndDecodesAck(t *testing.T) {
	var gotAuth string
	var gotBody SeatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/select-seat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"timestamp":1700000000123}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()), WithToken("tok"))
	ack, err := client.Select(context.Background(), "trip-1", "T1-A05")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ack.Stamp != 1700000000123 {
		t.Fatalf("expected stamp 1700000000123, got %d", ack.Stamp)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotBody.TripID != "trip-1" || gotBody.SeatID != "T1-A05" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestSelect_ConflictCarriesReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"reason":"seat_unavailable","message":"Seat T1-A05 is already taken","timestamp":5}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()))
	_, err := client.Select(context.Background(), "trip-1", "T1-A05")
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if re.Reason != ReasonSeatUnavailable || re.Status != http.StatusConflict {
		t.Fatalf("unexpected error %+v", re)
	}
}

func TestDo_StatusWithoutReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"too_many_requests"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()))
	_, err := client.Unselect(context.Background(), "trip-1", "T1-A05")
	if got := Reason(err); got != ReasonRateLimited {
		t.Fatalf("expected %q, got %q (%v)", ReasonRateLimited, got, err)
	}
}

func TestDo_NoRetryOnServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()))
	if _, err := client.Book(context.Background(), "trip-1", []model.SeatID{"T1-A01"}, model.CustomerInfo{}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url)
	_, err := client.Select(context.Background(), "trip-1", "T1-A01")
	if got := Reason(err); got != ReasonNetworkError {
		t.Fatalf("expected network_error, got %q", got)
	}
}

func TestBook_ExistingAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body BookRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.SeatIDs) != 2 || body.CustomerInfo.Phone != "0901234567" {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"success":true,"booking_id":"BK0A1B2C3D","total_price":500000,"action":"existing","timestamp":9}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()))
	ack, err := client.Book(context.Background(), "trip-1", []model.SeatID{"T1-A01", "T1-A02"},
		model.CustomerInfo{Name: "An", Phone: "0901234567", NationalID: "012345678901"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ack.BookingID != "BK0A1B2C3D" || !ack.Existing || ack.TotalPrice != 500000 {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestStartSession_StoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/session" {
			_, _ = w.Write([]byte(`{"session_id":"s1","token":"abc","expires_at":"2030-01-01T00:00:00Z"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"reason":"session_expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"trip_id":"trip-1","timestamp":7,"seats":{"T1-A01":{"status":"booked"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(server.Client()))
	if _, err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	snap, err := client.Seats(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("seats: %v", err)
	}
	if snap.Timestamp != 7 || snap.Seats.StatusOf("T1-A01") != model.StatusBooked {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestResultApply_FailureDoesNotMutate(t *testing.T) {
	m := seatmap.New("trip-1")
	r := Result{Op: OpSelect, TripID: "trip-1", SeatIDs: []model.SeatID{"T1-A05"}, Err: &Error{Reason: ReasonSeatUnavailable}}
	if _, applied := r.Apply(m); !applied {
		t.Fatal("expected result to belong to the map")
	}
	if m.Len() != 0 || m.DisplayStatus("T1-A05") != seatmap.Available {
		t.Fatalf("failed select changed the map: %v", m.Selection())
	}
}

func TestResultApply_OtherTripDiscarded(t *testing.T) {
	m := seatmap.New("trip-2")
	r := Result{Op: OpSelect, TripID: "trip-1", SeatIDs: []model.SeatID{"T1-A05"}, Ack: Ack{Stamp: 3}}
	if _, applied := r.Apply(m); applied {
		t.Fatal("expected result for another trip to be discarded")
	}
	if m.Len() != 0 {
		t.Fatalf("unexpected selection %v", m.Selection())
	}
}

func TestResultApply_SelectThenBook(t *testing.T) {
	m := seatmap.New("trip-1")
	for i, id := range []model.SeatID{"T1-A01", "T1-A02"} {
		Result{Op: OpSelect, TripID: "trip-1", SeatIDs: []model.SeatID{id}, Ack: Ack{Stamp: int64(i + 1)}}.Apply(m)
		if m.DisplayStatus(id) != seatmap.Mine {
			t.Fatalf("expected %s to be mine", id)
		}
	}
	Result{Op: OpBook, TripID: "trip-1", SeatIDs: []model.SeatID{"T1-A01", "T1-A02"}, Ack: Ack{Stamp: 3, BookingID: "BK00000001"}}.Apply(m)
	if m.Len() != 0 {
		t.Fatalf("expected empty selection, got %v", m.Selection())
	}
	if m.DisplayStatus("T1-A01") != seatmap.Booked || m.DisplayStatus("T1-A02") != seatmap.Booked {
		t.Fatal("expected both seats booked")
	}
}
