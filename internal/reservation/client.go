// Package reservation talks to the seat server on behalf of one client
// session.  Every operation is a single request and response; nothing is
// retried here.  Callers decide whether to try again.
package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatRequest is the body of select-seat and unselect-seat.
type SeatRequest struct {
	TripID string       `json:"trip_id" validate:"required"`
	SeatID model.SeatID `json:"seat_id" validate:"required"`
}

// BookRequest is the body of book.
type BookRequest struct {
	TripID       string             `json:"trip_id" validate:"required"`
	SeatIDs      []model.SeatID     `json:"seat_ids" validate:"required,min=1,dive,required"`
	CustomerInfo model.CustomerInfo `json:"customer_info"`
}

// Response is the body the server returns for select, unselect and book.
// Timestamp is the version stamp of the mutation (or of the state that
// made it fail).
type Response struct {
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	BookingID  string `json:"booking_id,omitempty"`
	TotalPrice int64  `json:"total_price,omitempty"`
	Action     string `json:"action,omitempty"` // "created" or "existing" for book
	Timestamp  int64  `json:"timestamp"`
}

// SessionResponse is returned by POST /api/session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Ack is a successful operation as seen by the caller.
type Ack struct {
	Stamp      int64
	BookingID  string
	TotalPrice int64
	Existing   bool
	Message    string
}

// Client issues reservation requests.  It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithToken sets an existing session token.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// StartSession asks the server for a new session and keeps its token for
// subsequent requests.
func (c *Client) StartSession(ctx context.Context) (SessionResponse, error) {
	var out SessionResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/session", nil, &out); err != nil {
		return SessionResponse{}, err
	}
	if out.Token == "" {
		return SessionResponse{}, &Error{Reason: ReasonInternal, Message: "server returned no session token"}
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return out, nil
}

// Select asks the server to hold seatID for this session.
func (c *Client) Select(ctx context.Context, tripID string, seatID model.SeatID) (Ack, error) {
	return c.mutate(ctx, "/api/select-seat", SeatRequest{TripID: tripID, SeatID: seatID})
}

// Unselect releases a seat held by this session.
func (c *Client) Unselect(ctx context.Context, tripID string, seatID model.SeatID) (Ack, error) {
	return c.mutate(ctx, "/api/unselect-seat", SeatRequest{TripID: tripID, SeatID: seatID})
}

// Book commits the held seats under one booking.  The server either books
// every seat or none.
func (c *Client) Book(ctx context.Context, tripID string, seatIDs []model.SeatID, info model.CustomerInfo) (Ack, error) {
	return c.mutate(ctx, "/api/book", BookRequest{TripID: tripID, SeatIDs: seatIDs, CustomerInfo: info})
}

// Seats fetches the current seat map of a trip.
func (c *Client) Seats(ctx context.Context, tripID string) (model.TripSnapshot, error) {
	var snap model.TripSnapshot
	if _, err := c.do(ctx, http.MethodGet, "/api/seats/"+url.PathEscape(tripID), nil, &snap); err != nil {
		return model.TripSnapshot{}, err
	}
	if snap.TripID == "" {
		snap.TripID = tripID
	}
	return snap, nil
}

func (c *Client) mutate(ctx context.Context, path string, body any) (Ack, error) {
	var resp Response
	status, err := c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		return Ack{}, err
	}
	if !resp.Success {
		reason := resp.Reason
		if reason == "" {
			reason = reasonForStatus(status)
		}
		return Ack{}, &Error{Reason: reason, Message: resp.Message, Status: status}
	}
	return Ack{
		Stamp:      resp.Timestamp,
		BookingID:  resp.BookingID,
		TotalPrice: resp.TotalPrice,
		Existing:   resp.Action == "existing",
		Message:    resp.Message,
	}, nil
}

// do performs one request.  A non-2xx response whose body decodes into out
// is returned with a nil error so mutate can read the reason; other non-2xx
// responses become an *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, &Error{Reason: ReasonNetworkError, Message: transportMessage(err)}
	}
	defer res.Body.Close()
	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return res.StatusCode, &Error{Reason: ReasonNetworkError, Message: transportMessage(err)}
	}
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		if len(bytes.TrimSpace(raw)) == 0 {
			return res.StatusCode, nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, &Error{Reason: ReasonInternal, Message: "malformed response", Status: res.StatusCode}
		}
		return res.StatusCode, nil
	}

	// Failed mutations carry {success:false, reason, message}.
	var failure Response
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Reason != "" {
		if resp, ok := out.(*Response); ok {
			*resp = failure
			return res.StatusCode, nil
		}
		return res.StatusCode, &Error{Reason: failure.Reason, Message: failure.Message, Status: res.StatusCode}
	}
	return res.StatusCode, &Error{
		Reason:  reasonForStatus(res.StatusCode),
		Message: strings.TrimSpace(string(raw)),
		Status:  res.StatusCode,
	}
}

func transportMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	return err.Error()
}
