/*

HTTP client for the analytics backend. All numerically hard work (fee
projection, impermanent-loss math, Monte Carlo simulation, backtesting)
happens on the backend; this client only issues requests, decodes the
payloads, and normalizes failures into a small error taxonomy:

	404               -> ErrNotFound ("resource not found")
	500               -> ErrServer ("server error")
	client timeout    -> ErrTimeout ("request timeout")
	other non-2xx     -> the backend's error field, or the raw status

Every call carries a fixed wall-clock timeout; the transport is expected to
be the offline interception layer so responses are written through to the
persistent cache on the way back.

*/

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/saucerview/saucerview/internal/logger"
	"github.com/saucerview/saucerview/internal/types"
)

var backendLogger = logger.GetForComponent("backend_client")

var (
	ErrTimeout  = errors.New("request timeout")
	ErrNotFound = errors.New("resource not found")
	ErrServer   = errors.New("server error")
)

// APIError carries a normalized backend failure with its HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client talks to the analytics backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a client with a fixed per-call timeout. transport nil
// means the default transport (no offline interception).
func NewClient(baseURL string, timeout time.Duration, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: backendLogger,
	}
}

// Health fetches the backend's detailed health payload.
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	var health types.HealthStatus
	if err := c.get(ctx, "/health/detailed", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// get performs one GET against the backend and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.normalizeTransportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body for %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.normalizeStatusError(path, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("Failed to decode backend response")
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) normalizeTransportError(path string, err error) error {
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()) {
		c.log.Warn().Str("path", path).Msg("Backend call timed out")
		return fmt.Errorf("%w: %s", ErrTimeout, path)
	}
	c.log.Warn().Err(err).Str("path", path).Msg("Backend call failed")
	return fmt.Errorf("backend request failed for %s: %w", path, err)
}

func (c *Client) normalizeStatusError(path string, status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrServer, path)
	}

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &apiErr) == nil {
		msg = apiErr.Error
		if msg == "" {
			msg = apiErr.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed (HTTP %d)", status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
