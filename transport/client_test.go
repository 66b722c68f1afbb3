package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/cvmcloud/deploy-client/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
	})
	return client, srv
}

func TestExecuteSuccess(t *testing.T) {
	var gotAPIKey, gotClientID, gotRequestID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get(api.APIKeyHeader)
		gotClientID = r.Header.Get(api.ClientIDHeader)
		gotRequestID = r.Header.Get(api.RequestIDHeader)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}, 3)

	var out map[string]string
	err := client.ExecuteJSON(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v1/ping"}, &out)
	require.NoError(t, err)
	require.Equal(t, "ok", out["status"])
	require.Equal(t, "test-key", gotAPIKey)
	require.NotEmpty(t, gotClientID)
	require.NotEmpty(t, gotRequestID)
}

func TestClientErrorNotRetried(t *testing.T) {
	requests := atomic.NewInt64(0)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Inc()
		http.Error(w, "no such deployment", http.StatusNotFound)
	}, 3)

	_, err := client.Execute(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v1/cvms/missing"})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	require.Equal(t, http.StatusNotFound, clientErr.StatusCode)
	require.Contains(t, clientErr.Body, "no such deployment")
	require.Equal(t, int64(1), requests.Load())
}

func TestServerErrorRetriedToExhaustion(t *testing.T) {
	requests := atomic.NewInt64(0)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Inc()
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, 3)

	_, err := client.Execute(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v1/pools"})

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, http.StatusServiceUnavailable, serverErr.StatusCode)
	// Initial attempt plus three retries.
	require.Equal(t, int64(4), requests.Load())
}

func TestServerErrorRecoversMidway(t *testing.T) {
	requests := atomic.NewInt64(0)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Inc() < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}, 3)

	body, err := client.Execute(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v1/pools"})
	require.NoError(t, err)
	require.Contains(t, string(body), "ok")
	require.Equal(t, int64(3), requests.Load())
}

func TestRetryDelaysStrictlyIncreasing(t *testing.T) {
	client := NewClient(&Config{BaseURL: "http://unused", RetryBaseDelay: 100 * time.Millisecond})

	var prev time.Duration
	for attempt := 1; attempt <= 5; attempt++ {
		delay := client.retryDelay(attempt)
		require.Greater(t, delay, prev, "attempt %d", attempt)
		prev = delay
	}
	require.Equal(t, 100*time.Millisecond, client.retryDelay(1))
	require.Equal(t, 200*time.Millisecond, client.retryDelay(2))
	require.Equal(t, 400*time.Millisecond, client.retryDelay(3))
}

func TestPerRequestTimeoutOverride(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, -1)

	start := time.Now()
	_, err := client.Execute(context.Background(), &Request{
		Method:  http.MethodGet,
		Path:    "/api/v1/slow",
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	require.True(t, IsRetryable(err))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestContextCancellationStopsRetries(t *testing.T) {
	requests := atomic.NewInt64(0)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Inc()
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first attempt may run, but no retry waits out a canceled context.
	_, err := client.Execute(ctx, &Request{Method: http.MethodGet, Path: "/api/v1/pools"})
	require.Error(t, err)
	require.LessOrEqual(t, requests.Load(), int64(1))
}
