// Package upload stores booking attachments and sends them to the server.
package upload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

var (
	ErrTooLarge       = errors.New("upload: file too large")
	ErrTypeNotAllowed = errors.New("upload: file type not allowed")
	ErrEmpty          = errors.New("upload: empty file")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store writes attachments into a directory.  Stored names have the form
// <booking>_<base>_<hash8><ext> where hash8 is the first eight hex digits
// of the content's BLAKE3 digest, so re-uploading the same file for the
// same booking lands on the same name.
type Store struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
}

// NewStore creates dir if needed.  An empty allowed list accepts every
// content type.
func NewStore(dir string, maxBytes int64, allowed []string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	s := &Store{dir: dir, maxBytes: maxBytes, allowed: map[string]bool{}}
	for _, a := range allowed {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			s.allowed[a] = true
		}
	}
	return s, nil
}

// Save streams r to disk and returns the stored file name.
func (s *Store) Save(bookingID, filename string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := blake3.New()
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	if n == 0 {
		return "", ErrEmpty
	}
	if !s.typeAllowed(http.DetectContentType(head)) {
		return "", ErrTypeNotAllowed
	}
	w := io.MultiWriter(tmp, h)
	if _, err := w.Write(head); err != nil {
		return "", err
	}
	written, err := io.Copy(w, src)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && int64(n)+written > s.maxBytes {
		return "", ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	name := StoredName(bookingID, filename, hex.EncodeToString(h.Sum(nil))[:8])
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", err
	}
	committed = true
	return name, nil
}

func (s *Store) typeAllowed(detected string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(detected, ";", 2)[0]))
	return s.allowed[mt]
}

// StoredName builds the on-disk name of an attachment.
func StoredName(bookingID, filename, hash8 string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(unsafeChars.ReplaceAllString(stem, "_"), "._")
	if stem == "" {
		stem = "file"
	}
	ext = unsafeChars.ReplaceAllString(ext, "")
	if bookingID == "" {
		return fmt.Sprintf("%s_%s%s", stem, hash8, ext)
	}
	return fmt.Sprintf("%s_%s_%s%s", unsafeChars.ReplaceAllString(bookingID, ""), stem, hash8, ext)
}
