package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatLine(t *testing.T) {
	line := FormatLine(BookingConfirmedEvent{
		BookingID:     "BK0000ABCD",
		TripID:        "T001",
		FromCity:      "Ha Noi",
		ToCity:        "Hai Phong",
		Date:          "2026-11-01",
		DepartureTime: "08:00",
		BusCode:       "29B-12345",
		Seats:         []string{"T1-A01", "T1-A02"},
		CustomerName:  "Nguyen Van A",
		CustomerPhone: "0912345678",
		TotalPrice:    300000,
		ConfirmedAt:   "2026-11-01T07:00:00Z",
	})
	for _, want := range []string{"booking_id=BK0000ABCD", "route=\"Ha Noi -> Hai Phong\"", "seats=[T1-A01,T1-A02]", "total=300000"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("expected trailing newline, got %q", line)
	}
}

func TestConsumerHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := NewConsumer("", "booking.confirmed", path, nil)

	if err := c.Handle([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed body")
	}
	if err := c.Handle([]byte(`{}`)); err == nil {
		t.Fatal("expected error for event without booking id")
	}
	for _, id := range []string{"BK00000001", "BK00000002"} {
		body, _ := json.Marshal(BookingConfirmedEvent{BookingID: id, TripID: "T001"})
		if err := c.Handle(body); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "BK00000002") {
		t.Fatalf("unexpected log content %q", raw)
	}
}
