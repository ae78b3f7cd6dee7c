package database

import (
	"strings"
	"testing"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DB{User: "bus", Pass: "s3cret", Host: "db.local", Port: "3307", Name: "bus_booking"})
	for _, want := range []string{"bus:s3cret@tcp(db.local:3307)/bus_booking?", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("DSN = %q, want it to contain %q", dsn, want)
		}
	}
	if strings.Contains(dsn, "loc=") {
		t.Fatalf("DSN = %q, want default UTC location", dsn)
	}

	noPass := DSN(config.DB{User: "root", Host: "localhost", Port: "3306", Name: "x"})
	if !strings.HasPrefix(noPass, "root@tcp(localhost:3306)/x") {
		t.Fatalf("DSN = %q, want no password section", noPass)
	}
}
