package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSSource fetches a manifest from an IPFS node by CID.
type IPFSSource struct {
	shell *shell.Shell
	cid   string
	log   *slog.Logger
	uri   string
}

// NewIPFSSource creates an IPFS manifest source connected to the given node.
func NewIPFSSource(host, port, cid string, log *slog.Logger) *IPFSSource {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	return &IPFSSource{
		shell: shell.NewShell(apiURL),
		cid:   cid,
		log:   log,
		uri:   fmt.Sprintf("ipfs://%s/%s", apiURL, cid),
	}
}

// Fetch retrieves the manifest content.
func (s *IPFSSource) Fetch(ctx context.Context) (string, error) {
	if !s.shell.IsUp() {
		return "", fmt.Errorf("ipfs node unavailable at %s", s.uri)
	}

	reader, err := s.shell.Cat(s.cid)
	if err != nil {
		return "", fmt.Errorf("could not fetch manifest %s from ipfs: %w", s.cid, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("could not read manifest from ipfs: %w", err)
	}

	s.log.Debug("loaded manifest from ipfs",
		slog.String("cid", s.cid),
		slog.Int("size", len(data)))
	return string(data), nil
}

// LocationURI returns the source location.
func (s *IPFSSource) LocationURI() string {
	return s.uri
}
