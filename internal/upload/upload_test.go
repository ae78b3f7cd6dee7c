package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000000000000000")

func newStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), max, []string{"image/png", "application/pdf"})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStoredName(t *testing.T) {
	cases := []struct {
		booking, file, want string
	}{
		{"BK1A2B3C4D", "ticket.PNG", "BK1A2B3C4D_ticket_deadbeef.png"},
		{"BK1A2B3C4D", "../../etc/passwd", "BK1A2B3C4D_passwd_deadbeef"},
		{"BK1A2B3C4D", `C:\Users\me\id card.pdf`, "BK1A2B3C4D_id_card_deadbeef.pdf"},
		{"", ".hidden", "file_deadbeef.hidden"},
	}
	for _, c := range cases {
		if got := StoredName(c.booking, c.file, "deadbeef"); got != c.want {
			t.Fatalf("StoredName(%q, %q) = %q, want %q", c.booking, c.file, got, c.want)
		}
	}
}

func TestSave_ContentAddressed(t *testing.T) {
	s := newStore(t, 1<<20)
	name1, err := s.Save("BK00000001", "scan.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !regexp.MustCompile(`^BK00000001_scan_[0-9a-f]{8}\.png$`).MatchString(name1) {
		t.Fatalf("unexpected name %q", name1)
	}
	name2, err := s.Save("BK00000001", "scan.png", bytes.NewReader(pngHeader))
	if err != nil || name2 != name1 {
		t.Fatalf("expected same name for same content, got %q %v", name2, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name1))
	if err != nil || !bytes.Equal(data, pngHeader) {
		t.Fatalf("stored content mismatch: %v", err)
	}
	entries, _ := os.ReadDir(s.dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the stored file, got %d entries", len(entries))
	}
}

func TestSave_Limits(t *testing.T) {
	s := newStore(t, 16)
	if _, err := s.Save("BK1", "big.png", bytes.NewReader(pngHeader)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	s = newStore(t, 1<<20)
	if _, err := s.Save("BK1", "note.txt", strings.NewReader("hello world")); !errors.Is(err, ErrTypeNotAllowed) {
		t.Fatalf("expected ErrTypeNotAllowed, got %v", err)
	}
	if _, err := s.Save("BK1", "empty.png", strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	entries, _ := os.ReadDir(s.dir)
	if len(entries) != 0 {
		t.Fatalf("expected rejected uploads to leave nothing, got %d entries", len(entries))
	}
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing token")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if r.FormValue("booking_id") != "BK00000001" || hdr.Filename != "scan.png" || !bytes.Equal(data, pngHeader) {
			t.Errorf("unexpected upload %s %s", r.FormValue("booking_id"), hdr.Filename)
		}
		_, _ = w.Write([]byte(`{"success":true,"filename":"BK00000001_scan_0badc0de.png"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewClient(srv.URL, func() string { return "tok" }, nil)
	name, err := c.Upload(context.Background(), "BK00000001", path)
	if err != nil || name != "BK00000001_scan_0badc0de.png" {
		t.Fatalf("unexpected result %q %v", name, err)
	}
}

func TestClient_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"reason":"validation_failed","message":"file type not allowed"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.txt")
	_ = os.WriteFile(path, []byte("x"), 0o600)
	_, err := NewClient(srv.URL, nil, nil).Upload(context.Background(), "BK1", path)
	if reservation.Reason(err) != reservation.ReasonValidationFailed {
		t.Fatalf("expected validation_failed, got %v", err)
	}
}
