// Authenticated request execution against the X API v2
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.x.com/2"

// APIClient executes bearer-authenticated requests and classifies their results.
type APIClient struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *log.Logger

	mu   sync.Mutex
	user *models.AuthenticatedUser
}

// ClientOption configures an [APIClient].
type ClientOption func(*APIClient)

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) ClientOption {
	return func(c *APIClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *APIClient) { c.metrics = m }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *APIClient) { c.logger = shared.WithLogger(l, "component", "api") }
}

// NewAPIClient creates an [APIClient] for baseURL.
func NewAPIClient(baseURL string, tokens TokenProvider, client *http.Client, opts ...ClientOption) *APIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: client,
		logger:     shared.WithLogger(nil, "component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Send performs an authenticated request to an absolute URL without classifying the
// status. Token and transport failures are the only errors.
func (c *APIClient) Send(ctx context.Context, method, fullURL string, body io.Reader, contentType string) (*APIResponse, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
		}
	}

	endpoint := req.URL.Path
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(start))
		return nil, &APIError{Kind: shared.ErrNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &APIError{Kind: shared.ErrNetwork, StatusCode: resp.StatusCode, Detail: "failed to read response: " + err.Error()}
	}

	c.logger.Debug("api request", "method", method, "path", endpoint, "status", resp.StatusCode)
	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Do performs an authenticated request to path under the base URL and returns the
// body of a 2xx response. Other statuses come back as [*APIError].
func (c *APIClient) Do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	resp, err := c.Send(ctx, method, c.baseURL+path, body, contentType)
	if err != nil {
		return nil, err
	}
	if err := Classify(resp.StatusCode, resp.Headers, resp.Body); err != nil {
		c.logger.Warn("api request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	return resp.Body, nil
}
