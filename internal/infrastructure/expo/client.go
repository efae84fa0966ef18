package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// MaxBatchSize is the most messages the gateway accepts in one request.
const MaxBatchSize = 100

// ErrorDeviceNotRegistered is the ticket error reported for a token the
// device no longer owns. Such tokens must not be used again.
const ErrorDeviceNotRegistered = "DeviceNotRegistered"

var ErrBatchTooLarge = errors.New("expo: batch exceeds 100 messages")

// Message is one push notification addressed to a single token.
type Message struct {
	To       string         `json:"to"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Badge    *int           `json:"badge,omitempty"`
}

// Ticket is the gateway receipt for one message, in request order.
type Ticket struct {
	Status  string        `json:"status"`
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details TicketDetails `json:"details,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// OK reports whether the gateway accepted the message.
func (t Ticket) OK() bool { return t.Status == "ok" }

// DeviceNotRegistered reports whether the token is permanently invalid.
func (t Ticket) DeviceNotRegistered() bool {
	return t.Details.Error == ErrorDeviceNotRegistered
}

type sendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client submits message batches to the push gateway.
type Client struct {
	url         string
	accessToken string
	http        *http.Client
	limiter     *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAccessToken sets the bearer token used for enhanced push security.
func WithAccessToken(token string) Option {
	return func(cl *Client) { cl.accessToken = token }
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSec float64) Option {
	return func(cl *Client) {
		if perSec <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url: url,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendBatch submits up to MaxBatchSize messages and returns one ticket per
// message. A transport failure or non-2xx status is returned as an error.
func (c *Client) SendBatch(ctx context.Context, messages []Message) ([]Ticket, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("expo: rate limit wait: %w", err)
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("expo: marshal messages: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("expo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("expo: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("expo: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("expo: status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("expo: decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("expo: %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	if len(out.Data) != len(messages) {
		return nil, fmt.Errorf("expo: got %d tickets for %d messages", len(out.Data), len(messages))
	}
	return out.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
