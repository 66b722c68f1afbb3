package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/cvmcloud/deploy-client/api"
)

// Load resolves a secret source URI and returns the secret environment set.
//
// Supported forms:
//   - path or file://path           dotenv file on disk
//   - env://KEY1,KEY2,...           named process environment variables
//   - vault://host:port/mount/path  HashiCorp Vault KV v2 secret
//
// Vault addresses default to https; append ?scheme=http for plaintext
// development servers.
func Load(ctx context.Context, uri string, log *slog.Logger) ([]api.EnvVar, error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return LoadEnvFile(uri)
	}

	switch strings.ToLower(scheme) {
	case "file":
		return LoadEnvFile(rest)
	case "env":
		keys := strings.Split(rest, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		return FromProcessEnv(keys...)
	case "vault":
		return loadFromVault(ctx, uri, log)
	default:
		return nil, fmt.Errorf("unsupported secret source scheme: %s", scheme)
	}
}

func loadFromVault(ctx context.Context, uri string, log *slog.Logger) ([]api.EnvVar, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid vault URI: %w", err)
	}

	addrScheme := "https"
	if u.Query().Get("scheme") == "http" {
		addrScheme = "http"
	}
	address := addrScheme + "://" + u.Host

	mountPath, secretPath, found := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if !found || secretPath == "" {
		return nil, fmt.Errorf("vault URI must include mount and secret path: %s", uri)
	}

	source, err := NewVaultSource(address, mountPath, secretPath, log)
	if err != nil {
		return nil, err
	}
	return source.Load(ctx)
}
