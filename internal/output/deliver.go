package output

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of one delivery attempt against a remote endpoint.
type Result struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Deliverer performs the actual outbound request. Implementations must honor
// context cancellation.
type Deliverer interface {
	Send(ctx context.Context, method Method, url string, headers []Header, body string) (*Result, error)
}

// HTTPDeliverer delivers over a real HTTP client.
type HTTPDeliverer struct {
	client *http.Client
}

// HTTPOption configures the deliverer.
type HTTPOption func(*HTTPDeliverer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTPDeliverer) {
		d.client = client
	}
}

// NewHTTPDeliverer creates a deliverer with the given per-request timeout.
func NewHTTPDeliverer(timeout time.Duration, opts ...HTTPOption) *HTTPDeliverer {
	d := &HTTPDeliverer{
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send issues the request and returns the raw response. Non-2xx responses are
// returned as results, not errors; the caller decides how to record them.
func (d *HTTPDeliverer) Send(ctx context.Context, method Method, url string, headers []Header, body string) (*Result, error) {
	var reader io.Reader
	if method != MethodGet {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Duration:   time.Since(start),
	}, nil
}

// Simulator fabricates a successful delivery without touching the network.
// Used by the destination "simulate request" flow; records into history
// exactly like a real delivery.
type Simulator struct {
	// Latency is reported as the simulated request duration.
	Latency time.Duration
}

// Send returns a canned 200 response.
func (s *Simulator) Send(ctx context.Context, method Method, url string, headers []Header, body string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	latency := s.Latency
	if latency == 0 {
		latency = 142 * time.Millisecond
	}
	return &Result{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "message": "Webhook received successfully"}`,
		Duration:   latency,
	}, nil
}

var (
	_ Deliverer = (*HTTPDeliverer)(nil)
	_ Deliverer = (*Simulator)(nil)
)
