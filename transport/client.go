package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/common"
)

// Defaults applied by NewClient when the corresponding Config field is zero.
const (
	// DefaultTimeout bounds a single request when the Request carries no
	// override. Status queries use a much shorter override, submissions a
	// longer one; both are set by the caller per request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the delay before the first retry. It doubles
	// on each subsequent retry.
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Request describes one call against the provisioning API.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the request path relative to the client's base URL.
	Path string

	// Body is marshaled to JSON when non-nil.
	Body any

	// Timeout overrides the client's default per-request timeout when
	// positive.
	Timeout time.Duration
}

// Config configures a Client.
type Config struct {
	// BaseURL is the provisioning API base URL, without trailing slash.
	BaseURL string

	// APIKey is sent on every request in the API key header.
	APIKey string

	// Timeout is the default per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	// Negative disables retries; zero means DefaultMaxRetries.
	MaxRetries int

	// RetryBaseDelay is the delay before the first retry; it doubles per
	// retry. Zero means DefaultRetryBaseDelay.
	RetryBaseDelay time.Duration

	// HTTPClient optionally overrides the underlying HTTP client.
	HTTPClient *http.Client

	// Log receives debug records for retries and request failures.
	Log *slog.Logger
}

// Client executes JSON requests against the provisioning API with bounded
// exponential-backoff retry for idempotent-safe failures. A Client is
// stateless per call aside from its fixed configuration and is safe for
// concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	log            *slog.Logger
}

// NewClient creates a transport client, filling in defaults for unset
// configuration fields.
func NewClient(cfg *Config) *Client {
	c := &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		httpClient:     cfg.HTTPClient,
		log:            cfg.Log,
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	} else if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryBaseDelay == 0 {
		c.retryBaseDelay = DefaultRetryBaseDelay
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Execute performs the request, retrying on connection failures and
// server-error responses. Client errors (4xx) are never retried. On
// exhausting retries the last error is returned unchanged in kind.
func (c *Client) Execute(ctx context.Context, req *Request) ([]byte, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			c.log.Debug("retrying request",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				"err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		respBody, err := c.do(ctx, req.Method, req.Path, body, timeout)
		if err == nil {
			return respBody, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// ExecuteJSON performs the request and decodes the JSON response body into
// out. Pass nil when the response body is irrelevant.
func (c *Client) ExecuteJSON(ctx context.Context, req *Request, out any) error {
	respBody, err := c.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not parse response for %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// retryDelay returns the backoff delay preceding the given retry attempt
// (1-based). Delays double per attempt, so the sequence is strictly
// increasing.
func (c *Client) retryDelay(attempt int) time.Duration {
	return c.retryBaseDelay << (attempt - 1)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not build request for %s %s: %w", method, path, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(api.APIKeyHeader, c.apiKey)
	httpReq.Header.Set(api.ClientIDHeader, common.ClientID+"/"+common.Version)
	httpReq.Header.Set(api.RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response for %s %s: %w", method, path, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: string(respBody)}
	case resp.StatusCode >= 400:
		return nil, &ClientError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
