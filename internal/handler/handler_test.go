package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
	"github.com/iliyamo/bus-seat-reservation/internal/upload"
)

const secret = "test-secret"

type fakeBookings struct {
	mu    sync.Mutex
	saved []model.Booking
	hash  string
	fail  error
}

func (f *fakeBookings) Save(_ context.Context, b model.Booking, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saved = append(f.saved, b)
	f.hash = hash
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.saved {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}

func (f *fakeBookings) state() ([]model.Booking, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Booking(nil), f.saved...), f.hash
}

func (f *fakeBookings) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

type fakeEvents struct {
	ch chan queue.BookingConfirmedEvent
}

func (f *fakeEvents) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	f.ch <- ev
	return nil
}

type server struct {
	url      string
	store    *seatstore.Store
	bookings *fakeBookings
	events   *fakeEvents
}

func newServer(t *testing.T) server {
	t.Helper()
	cat, err := catalog.New(catalog.Data{
		Routes: []model.Route{
			{ID: "R001", FromCity: "Ha Noi", ToCity: "Hai Phong", BasePrice: 150000},
			{ID: "R002", FromCity: "Ha Noi", ToCity: "Da Nang", BasePrice: 450000},
		},
		Trips: []model.Trip{
			{ID: "T001", RouteID: "R001", Date: "2026-11-01", DepartureTime: "08:00", BusCode: "29B-12345"},
			{ID: "T002", RouteID: "R001", Date: "2026-11-01", DepartureTime: "06:30", TotalSeats: 10},
			{ID: "T003", RouteID: "R002", Date: "2026-11-02", DepartureTime: "20:00"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := seatstore.New(cat.Lookup)
	uploads, err := upload.NewStore(t.TempDir(), 1<<10, []string{"text/plain"})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	e.Validator = handler.NewValidator()
	sh := handler.NewSeatHandler(store, cat, 4, nil)
	bookings := &fakeBookings{}
	events := &fakeEvents{ch: make(chan queue.BookingConfirmedEvent, 4)}
	sh.Bookings = bookings
	sh.Reader = bookings
	sh.Events = events

	router.RegisterRoutes(e, nil)
	router.RegisterSession(e, handler.NewSessionHandler(secret, time.Hour, nil))
	router.RegisterCatalog(e, handler.NewCatalogHandler(cat, store), nil)
	router.RegisterSeats(e, sh, handler.NewUploadHandler(uploads, store, 1<<10, nil), secret, nil)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return server{url: ts.URL, store: store, bookings: bookings, events: events}
}

func newClient(t *testing.T, url string) *reservation.Client {
	t.Helper()
	c := reservation.NewClient(url)
	if _, err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return c
}

var alice = model.CustomerInfo{Name: " Nguyen Van A ", Phone: "0912345678", NationalID: "001099012345"}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	res, err := http.Get(srv.url + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}

func TestSeatRoutesRequireSession(t *testing.T) {
	srv := newServer(t)
	_, err := reservation.NewClient(srv.url).Select(context.Background(), "T001", "T1-A01")
	if reservation.Reason(err) != reservation.ReasonSessionExpired {
		t.Fatalf("expected session_expired, got %v", err)
	}
}

func TestSelectContentionAndUnselect(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	a, b := newClient(t, srv.url), newClient(t, srv.url)

	ack, err := a.Select(ctx, "T001", "T1-A05")
	if err != nil {
		t.Fatalf("expected select to succeed, got %v", err)
	}
	if ack.Stamp == 0 {
		t.Fatal("expected a version stamp")
	}
	if _, err := b.Select(ctx, "T001", "T1-A05"); reservation.Reason(err) != reservation.ReasonSeatUnavailable {
		t.Fatalf("expected seat_unavailable, got %v", err)
	}
	if _, err := b.Unselect(ctx, "T001", "T1-A05"); reservation.Reason(err) != reservation.ReasonSeatNoLongerHeld {
		t.Fatalf("expected seat_no_longer_held, got %v", err)
	}
	if _, err := a.Select(ctx, "T404", "T1-A05"); reservation.Reason(err) != reservation.ReasonInvalidTrip {
		t.Fatalf("expected invalid_trip, got %v", err)
	}
	if _, err := a.Select(ctx, "T001", "X9"); reservation.Reason(err) != reservation.ReasonInvalidSeat {
		t.Fatalf("expected invalid_seat, got %v", err)
	}

	snap, err := b.Seats(ctx, "T001")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seats.StatusOf("T1-A05") != model.StatusHeld || snap.Timestamp < ack.Stamp {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, err := a.Unselect(ctx, "T001", "T1-A05"); err != nil {
		t.Fatalf("expected unselect to succeed, got %v", err)
	}
	if _, err := b.Select(ctx, "T001", "T1-A05"); err != nil {
		t.Fatalf("expected released seat to be selectable, got %v", err)
	}
}

func TestBookFlow(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	a, b := newClient(t, srv.url), newClient(t, srv.url)
	seats := []model.SeatID{"T1-A01", "T1-A02"}
	for _, id := range seats {
		if _, err := a.Select(ctx, "T001", id); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := a.Book(ctx, "T001", seats, model.CustomerInfo{Name: "A", Phone: "abc"}); reservation.Reason(err) != reservation.ReasonValidationFailed {
		t.Fatalf("expected validation_failed, got %v", err)
	}
	if _, err := b.Book(ctx, "T001", seats, alice); reservation.Reason(err) != reservation.ReasonSeatNoLongerHeld {
		t.Fatalf("expected seat_no_longer_held for foreign session, got %v", err)
	}

	ack, err := a.Book(ctx, "T001", seats, alice)
	if err != nil {
		t.Fatalf("expected booking to succeed, got %v", err)
	}
	if !strings.HasPrefix(ack.BookingID, "BK") || len(ack.BookingID) != 10 {
		t.Fatalf("unexpected booking id %q", ack.BookingID)
	}
	if ack.TotalPrice != 300000 || ack.Existing {
		t.Fatalf("unexpected ack %+v", ack)
	}
	saved, hash := srv.bookings.state()
	if len(saved) != 1 || saved[0].Customer.Name != "Nguyen Van A" {
		t.Fatalf("expected normalised booking saved, got %+v", saved)
	}
	if hash == "" || hash == alice.NationalID {
		t.Fatalf("expected hashed national id, got %q", hash)
	}
	select {
	case ev := <-srv.events.ch:
		if ev.BookingID != ack.BookingID || ev.FromCity != "Ha Noi" || len(ev.Seats) != 2 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected booking.confirmed event")
	}

	again, err := a.Book(ctx, "T001", []model.SeatID{"T1-A02", "T1-A01"}, alice)
	if err != nil {
		t.Fatalf("expected replay to succeed, got %v", err)
	}
	if again.BookingID != ack.BookingID || !again.Existing {
		t.Fatalf("unexpected replay %+v", again)
	}
	if saved, _ := srv.bookings.state(); len(saved) != 1 {
		t.Fatalf("expected replay not to save again, got %d", len(saved))
	}
}

func TestBookPersistFailureKeepsHolds(t *testing.T) {
	srv := newServer(t)
	srv.bookings.setFail(errors.New("db down"))
	ctx := context.Background()
	a := newClient(t, srv.url)
	if _, err := a.Select(ctx, "T001", "T1-A01"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Book(ctx, "T001", []model.SeatID{"T1-A01"}, alice); reservation.Reason(err) != reservation.ReasonInternal {
		t.Fatalf("expected internal_error, got %v", err)
	}
	snap, _ := srv.store.Snapshot("T001")
	if snap.Seats.StatusOf("T1-A01") != model.StatusHeld {
		t.Fatalf("expected seat still held, got %q", snap.Seats.StatusOf("T1-A01"))
	}
}

func getBooking(t *testing.T, url, token, id string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url+"/api/bookings/"+id, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return res.StatusCode, body
}

func TestBookingLookupIsSessionScoped(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	a, b := newClient(t, srv.url), newClient(t, srv.url)
	if _, err := a.Select(ctx, "T001", "T1-A03"); err != nil {
		t.Fatal(err)
	}
	ack, err := a.Book(ctx, "T001", []model.SeatID{"T1-A03"}, alice)
	if err != nil {
		t.Fatal(err)
	}

	status, body := getBooking(t, srv.url, a.Token(), ack.BookingID)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	got, _ := body["booking"].(map[string]any)
	if got["id"] != ack.BookingID || got["trip_id"] != "T001" {
		t.Fatalf("unexpected booking %v", got)
	}
	if cust, _ := got["customer"].(map[string]any); cust["cccd"] != "" {
		t.Fatalf("expected national id to be withheld, got %v", cust["cccd"])
	}

	if status, body := getBooking(t, srv.url, b.Token(), ack.BookingID); status != http.StatusNotFound || body["reason"] != reservation.ReasonBookingNotFound {
		t.Fatalf("expected booking_not_found for another session, got %d %v", status, body)
	}
	if status, _ := getBooking(t, srv.url, a.Token(), "BK00000000"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", status)
	}
}

func TestCatalogRoutes(t *testing.T) {
	srv := newServer(t)
	cl := catalog.NewClient(srv.url, nil)
	ctx := context.Background()

	routes, err := cl.SearchRoutes(ctx, "ha noi", "")
	if err != nil || len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %v %v", routes, err)
	}
	dates, err := cl.ListDates(ctx, "R001")
	if err != nil || len(dates) != 1 || dates[0] != "2026-11-01" {
		t.Fatalf("unexpected dates %v %v", dates, err)
	}
	if _, err := cl.ListDates(ctx, "R999"); reservation.Reason(err) != reservation.ReasonInvalidRoute {
		t.Fatalf("expected invalid_route, got %v", err)
	}

	a := newClient(t, srv.url)
	if _, err := a.Select(ctx, "T002", "T1-A01"); err != nil {
		t.Fatal(err)
	}
	trips, err := cl.SearchTrips(ctx, "R001", "2026-11-01")
	if err != nil || len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %v %v", trips, err)
	}
	if trips[0].ID != "T002" || trips[0].AvailableSeats != 9 || trips[1].AvailableSeats != 40 {
		t.Fatalf("unexpected trips %+v", trips)
	}

	res, err := http.Post(srv.url+"/api/trips", "application/json", strings.NewReader(`{"route_id":"R001","date":"01/11/2026"}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", res.StatusCode)
	}
}

func TestTripInfo(t *testing.T) {
	srv := newServer(t)
	res, err := http.Get(srv.url + "/api/trip-info/T003")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var out catalog.TripInfoResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Trip.ID != "T003" || out.Route.ToCity != "Da Nang" || out.Trip.TotalSeats != 40 {
		t.Fatalf("unexpected trip info %+v", out)
	}
}

func postFile(t *testing.T, url, token, bookingID, name string, content []byte) (int, upload.Response) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("booking_id", bookingID)
	part, _ := mw.CreateFormFile("file", name)
	_, _ = part.Write(content)
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, url+"/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var out upload.Response
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func TestUpload(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	a := newClient(t, srv.url)
	if _, err := a.Select(ctx, "T001", "T1-A01"); err != nil {
		t.Fatal(err)
	}
	ack, err := a.Book(ctx, "T001", []model.SeatID{"T1-A01"}, alice)
	if err != nil {
		t.Fatal(err)
	}

	if status, _ := postFile(t, srv.url, a.Token(), "BK00000000", "id.txt", []byte("hello")); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", status)
	}
	if status, _ := postFile(t, srv.url, a.Token(), ack.BookingID, "big.txt", bytes.Repeat([]byte("a"), 2<<10)); status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", status)
	}

	path := filepath.Join(t.TempDir(), "ticket note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	name, err := upload.NewClient(srv.url, a.Token, nil).Upload(ctx, ack.BookingID, path)
	if err != nil {
		t.Fatalf("expected upload to succeed, got %v", err)
	}
	if !strings.HasPrefix(name, ack.BookingID+"_") || !strings.HasSuffix(name, ".txt") {
		t.Fatalf("unexpected stored name %q", name)
	}
}
