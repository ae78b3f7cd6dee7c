package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

// Response is the body of POST /api/upload.
type Response struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Client sends attachments to the seat server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      func() string
}

// NewClient returns an uploader for the server at baseURL.  token supplies
// the current session token and may be nil.
func NewClient(baseURL string, token func() string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// Upload sends the file at path for bookingID and returns the stored name.
func (c *Client) Upload(ctx context.Context, bookingID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("booking_id", bookingID); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &reservation.Error{Reason: reservation.ReasonNetworkError, Message: err.Error()}
	}
	defer res.Body.Close()

	var out Response
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(raw, &out); err != nil || !out.Success {
		msg := out.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", reservation.NewStatusError(res.StatusCode, out.Reason, msg)
	}
	return out.Filename, nil
}
