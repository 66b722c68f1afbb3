package secrets

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvmcloud/deploy-client/api"
)

func TestParseEnv(t *testing.T) {
	input := `
# database settings
DATABASE_URL=postgres://user@host/db
export API_TOKEN=tok-123

QUOTED="some value"
SINGLE='other value'
EMPTY=
WITH_EQUALS=a=b=c
`
	vars, err := ParseEnv(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []api.EnvVar{
		{Key: "DATABASE_URL", Value: "postgres://user@host/db"},
		{Key: "API_TOKEN", Value: "tok-123"},
		{Key: "QUOTED", Value: "some value"},
		{Key: "SINGLE", Value: "other value"},
		{Key: "EMPTY", Value: ""},
		{Key: "WITH_EQUALS", Value: "a=b=c"},
	}, vars)
}

func TestParseEnvDuplicatesLastWriteWins(t *testing.T) {
	input := "KEY=first\nOTHER=x\nKEY=second\n"

	vars, err := ParseEnv(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []api.EnvVar{
		{Key: "KEY", Value: "second"},
		{Key: "OTHER", Value: "x"},
	}, vars)
}

func TestParseEnvMalformed(t *testing.T) {
	for _, input := range []string{
		"NOVALUE\n",
		"=value\n",
	} {
		_, err := ParseEnv(strings.NewReader(input))
		require.Error(t, err, "input %q", input)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\nB=2\n"), 0o600))

	vars, err := LoadEnvFile(path)
	require.NoError(t, err)
	require.Len(t, vars, 2)

	_, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestFromProcessEnv(t *testing.T) {
	t.Setenv("DEPLOY_TEST_SECRET", "value-1")

	vars, err := FromProcessEnv("DEPLOY_TEST_SECRET")
	require.NoError(t, err)
	require.Equal(t, []api.EnvVar{{Key: "DEPLOY_TEST_SECRET", Value: "value-1"}}, vars)

	_, err = FromProcessEnv("DEPLOY_TEST_SECRET_UNSET")
	require.Error(t, err)
}

func TestLoadBySourceURI(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n"), 0o600))

	vars, err := Load(ctx, path, log)
	require.NoError(t, err)
	require.Len(t, vars, 1)

	vars, err = Load(ctx, "file://"+path, log)
	require.NoError(t, err)
	require.Len(t, vars, 1)

	t.Setenv("DEPLOY_TEST_A", "1")
	t.Setenv("DEPLOY_TEST_B", "2")
	vars, err = Load(ctx, "env://DEPLOY_TEST_A, DEPLOY_TEST_B", log)
	require.NoError(t, err)
	require.Len(t, vars, 2)

	_, err = Load(ctx, "ftp://example.com/secrets", log)
	require.Error(t, err)

	_, err = Load(ctx, "vault://vault.example.com:8200/secret", log)
	require.Error(t, err) // missing secret path
}
