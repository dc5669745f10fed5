package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muratovb/geowatch/internal/models"
)

const (
	// DefaultBaseURL is the last-resort endpoint used when neither the
	// persisted service config nor the environment provides one.
	DefaultBaseURL = "http://103.14.120.163:8092/api"

	requestTimeout = 10 * time.Second
)

// ErrAuthMissing means no bearer token is available. Callers skip the
// network attempt entirely and defer to a later sync pass.
var ErrAuthMissing = errors.New("auth token missing")

// Client posts attendance events to the remote API. The server is an opaque
// collaborator: success is any 2xx response.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given base URL and bearer token.
// An empty base URL falls back to DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type checkRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Notes     string  `json:"notes,omitempty"`
}

// CheckIn posts a check-in at the given position.
func (c *Client) CheckIn(ctx context.Context, lat, lng float64, notes string) error {
	return c.post(ctx, "/attendance/check-in", lat, lng, notes)
}

// CheckOut posts a check-out at the given position.
func (c *Client) CheckOut(ctx context.Context, lat, lng float64, notes string) error {
	return c.post(ctx, "/attendance/check-out", lat, lng, notes)
}

// SendEvent posts a stored event to its type-specific endpoint.
func (c *Client) SendEvent(ctx context.Context, event *models.AttendanceEvent) error {
	switch event.EventType {
	case models.EventCheckIn:
		return c.CheckIn(ctx, event.Latitude, event.Longitude, event.Notes)
	case models.EventCheckOut:
		return c.CheckOut(ctx, event.Latitude, event.Longitude, event.Notes)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}

func (c *Client) post(ctx context.Context, endpoint string, lat, lng float64, notes string) error {
	if c.token == "" {
		return ErrAuthMissing
	}

	body, err := json.Marshal(checkRequest{Latitude: lat, Longitude: lng, Notes: notes})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	return nil
}
