package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPSource fetches a manifest over plain HTTP(S).
type HTTPSource struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewHTTPSource creates an HTTP manifest source.
func NewHTTPSource(url string, log *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// Fetch downloads the manifest.
func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("could not build manifest request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("manifest fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read manifest response: %w", err)
	}

	s.log.Debug("loaded manifest over http",
		slog.String("url", s.url),
		slog.Int("size", len(data)))
	return string(data), nil
}

// LocationURI returns the source location.
func (s *HTTPSource) LocationURI() string {
	return s.url
}
