package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion on long-lived polls
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Reading is the poller-internal wire representation of one sensor record.
//
// It mirrors the server's JSON shape exactly and is decoupled from the public
// lotboard types to allow independent evolution; the board converts at the
// boundary.
type Reading struct {
	// IDSensor identifies the sensor within a lot.
	IDSensor int `json:"idSensor"`

	// Lot is the numeric id of the parking lot.
	Lot int `json:"lot"`

	// Available reports whether the space is free. A pointer distinguishes a
	// defined false from a missing key: a reading whose snapshot element never
	// carried the key must be skipped, not applied as occupied.
	Available *bool `json:"available"`
}

// snapshotEnvelope is the GET /api/sensors response body.
type snapshotEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client fetches snapshots from and pushes readings to the tracker server.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB to prevent memory issues.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a polling [Client] for the server at baseURL.
//
// The timeout applies per request via context cancellation. The underlying
// transport carries conservative connection pooling limits:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
	}
}

// FetchSnapshot performs GET /api/sensors and decodes the full record set.
//
// A non-200 status, an unreadable body, or an envelope without a data array
// all yield an error; the caller treats any error as a connectivity failure.
// Individual malformed elements inside the data array are NOT an error here:
// missing fields decode to zero values (nil for the available key) and are
// skipped by the per-item checks applied before reconciliation.
func (c *Client) FetchSnapshot(ctx context.Context) ([]Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sensors", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid snapshot body: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("snapshot body has no data array")
	}

	var readings []Reading
	if err := json.Unmarshal(envelope.Data, &readings); err != nil {
		return nil, fmt.Errorf("invalid snapshot data: %w", err)
	}
	return readings, nil
}

// PushReading performs POST /api/sensors with a single reading.
//
// Used for the fire-and-forget sync of locally added spaces; the caller logs
// failures but never rolls back local state.
func (c *Client) PushReading(ctx context.Context, r Reading) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sensors", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
