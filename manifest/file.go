package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// FileSource reads a manifest from the local filesystem.
type FileSource struct {
	path string
	log  *slog.Logger
}

// NewFileSource creates a filesystem manifest source.
func NewFileSource(path string, log *slog.Logger) *FileSource {
	return &FileSource{path: path, log: log}
}

// Fetch reads the manifest file.
func (s *FileSource) Fetch(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("could not read manifest file: %w", err)
	}

	s.log.Debug("loaded manifest from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))
	return string(data), nil
}

// LocationURI returns the source location.
func (s *FileSource) LocationURI() string {
	return "file://" + s.path
}
