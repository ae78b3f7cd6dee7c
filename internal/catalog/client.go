package catalog

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
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

const (
	defaultMaxAttempts = 3
	defaultRetryBase   = 200 * time.Millisecond
	defaultRetryCap    = 1200 * time.Millisecond
)

// Client reads the catalog from the seat server.  Catalog reads have no
// side effects, so transient failures are retried with backoff.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
}

// NewClient creates a catalog client.  If httpClient is nil, a default
// client is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		retryCap:    defaultRetryCap,
	}
}

func (c *Client) ListCities(ctx context.Context) (model.Cities, error) {
	var out model.Cities
	err := c.doJSON(ctx, http.MethodGet, "/api/cities", nil, &out)
	return out, err
}

func (c *Client) SearchRoutes(ctx context.Context, from, to string) ([]model.Route, error) {
	var out RoutesResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/routes", RoutesRequest{FromCity: from, ToCity: to}, &out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}

func (c *Client) ListDates(ctx context.Context, routeID string) ([]string, error) {
	var out DatesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/dates/"+url.PathEscape(routeID), nil, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (c *Client) SearchTrips(ctx context.Context, routeID, date string) ([]model.Trip, error) {
	var out TripsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/trips", TripsRequest{RouteID: routeID, Date: date}, &out); err != nil {
		return nil, err
	}
	return out.Trips, nil
}

func (c *Client) GetTrip(ctx context.Context, tripID string) (model.Trip, error) {
	var out TripInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/trip-info/"+url.PathEscape(tripID), nil, &out); err != nil {
		return model.Trip{}, err
	}
	return out.Trip, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = buf
	}
	maxAttempts := c.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if c.shouldRetryNetworkError(err) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return &reservation.Error{Reason: reservation.ReasonNetworkError, Message: err.Error()}
		}

		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			snippet, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
			_ = res.Body.Close()
			if c.shouldRetryStatus(res.StatusCode) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			var failure reservation.Response
			message := strings.TrimSpace(string(snippet))
			if json.Unmarshal(snippet, &failure) == nil && failure.Message != "" {
				message = failure.Message
			}
			return reservation.NewStatusError(res.StatusCode, failure.Reason, message)
		}

		err = json.NewDecoder(res.Body).Decode(out)
		_ = res.Body.Close()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
		return nil
	}

	return errors.New("request failed after retries")
}

func (c *Client) shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) shouldRetryNetworkError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) waitRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.retryDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.retryBase << (attempt - 1)
	if d > c.retryCap {
		d = c.retryCap
	}
	return d
}
