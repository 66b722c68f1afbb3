package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Source fetches a docker compose manifest from one location. The manifest
// text is treated as opaque; compose semantics are the service's concern.
type Source interface {
	// Fetch returns the manifest text.
	Fetch(ctx context.Context) (string, error)

	// LocationURI returns the URI the source was created from, for logging.
	LocationURI() string
}

// SourceFactory creates manifest sources from location URIs.
type SourceFactory struct {
	log *slog.Logger
}

// NewSourceFactory creates a factory.
func NewSourceFactory(log *slog.Logger) *SourceFactory {
	return &SourceFactory{log: log}
}

// SourceFor creates a manifest source from a location URI.
//
// Supported schemes:
//   - file:// (or a bare path) - local filesystem
//   - http:// and https://     - plain HTTP fetch
//   - s3://                    - Amazon S3 or compatible object storage
//   - ipfs://                  - IPFS node or gateway
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *SourceFactory) SourceFor(locationURI string) (Source, error) {
	if !strings.Contains(locationURI, "://") {
		return NewFileSource(locationURI, sf.log), nil
	}

	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest location URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileSource(u.Host+u.Path, sf.log), nil
	case "http", "https":
		return NewHTTPSource(locationURI, sf.log), nil
	case "s3":
		return sf.createS3Source(u)
	case "ipfs":
		return sf.createIPFSSource(u)
	default:
		return nil, fmt.Errorf("unsupported manifest source scheme: %s", u.Scheme)
	}
}

// Fetch is a convenience wrapper resolving a URI and fetching it in one call.
func (sf *SourceFactory) Fetch(ctx context.Context, locationURI string) (string, error) {
	source, err := sf.SourceFor(locationURI)
	if err != nil {
		return "", err
	}
	return source.Fetch(ctx)
}

// createS3Source parses an S3 manifest location.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket/key?region=us-west-2&endpoint=custom.s3.com
func (sf *SourceFactory) createS3Source(u *url.URL) (Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 manifest URI must include bucket and key: %s", u.String())
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Source(bucket, key, region, endpoint, accessKey, secretKey, sf.log)
}

// createIPFSSource parses an IPFS manifest location.
// URI format: ipfs://host:port/CID
func (sf *SourceFactory) createIPFSSource(u *url.URL) (Source, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5001"
	}

	cid := strings.TrimPrefix(u.Path, "/")
	if host == "" || cid == "" {
		return nil, fmt.Errorf("ipfs manifest URI must include node address and CID: %s", u.String())
	}

	return NewIPFSSource(host, port, cid, sf.log), nil
}
