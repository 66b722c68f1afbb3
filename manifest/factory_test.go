package manifest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSourceForSchemes(t *testing.T) {
	sf := NewSourceFactory(testLogger())

	testCases := []struct {
		uri     string
		want    any
		wantErr bool
	}{
		{uri: "/etc/compose/app.yaml", want: &FileSource{}},
		{uri: "file:///etc/compose/app.yaml", want: &FileSource{}},
		{uri: "https://example.com/app.yaml", want: &HTTPSource{}},
		{uri: "s3://bucket/manifests/app.yaml?region=eu-west-1", want: &S3Source{}},
		{uri: "ipfs://127.0.0.1:5001/QmManifestCID", want: &IPFSSource{}},
		{uri: "s3://bucket", wantErr: true},           // missing key
		{uri: "ipfs://127.0.0.1:5001", wantErr: true}, // missing CID
		{uri: "ftp://example.com/app.yaml", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			source, err := sf.SourceFor(tc.uri)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tc.want, source)
			require.NotEmpty(t, source.LocationURI())
		})
	}
}

func TestFileSourceFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compose.yaml")
	content := "services:\n  app:\n    image: app:1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	sf := NewSourceFactory(testLogger())
	got, err := sf.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, content, got)

	_, err = sf.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestHTTPSourceFetch(t *testing.T) {
	content := "services: {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	}))
	t.Cleanup(srv.Close)

	sf := NewSourceFactory(testLogger())

	got, err := sf.Fetch(context.Background(), srv.URL+"/app.yaml")
	require.NoError(t, err)
	require.Equal(t, content, got)

	_, err = sf.Fetch(context.Background(), srv.URL+"/missing.yaml")
	require.Error(t, err)
}
