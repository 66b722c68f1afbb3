package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/cvmcloud/deploy-client/api"
)

// VaultSource loads deployment secrets from a HashiCorp Vault KV v2 secret.
// Authentication uses the standard VAULT_TOKEN environment variable, which
// the Vault client picks up on construction.
type VaultSource struct {
	client     *vaultapi.Client
	mountPath  string
	secretPath string
	log        *slog.Logger
}

// NewVaultSource creates a Vault-backed secret source.
//
// Parameters:
//   - address: Vault server address, e.g. https://vault.example.com:8200
//   - mountPath: KV v2 mount, e.g. "secret"
//   - secretPath: path within the mount, e.g. "deployments/orderbook"
func NewVaultSource(address, mountPath, secretPath string, log *slog.Logger) (*VaultSource, error) {
	config := vaultapi.DefaultConfig()
	config.Address = address

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("could not create vault client: %w", err)
	}

	return &VaultSource{
		client:     client,
		mountPath:  strings.Trim(mountPath, "/"),
		secretPath: strings.Trim(secretPath, "/"),
		log:        log,
	}, nil
}

// Load reads the secret and returns its fields as environment variables,
// sorted by key for a deterministic order.
func (s *VaultSource) Load(ctx context.Context) ([]api.EnvVar, error) {
	// KV v2 data path structure.
	path := fmt.Sprintf("%s/data/%s", s.mountPath, s.secretPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("could not read vault path %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at vault path %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected data format at vault path %s", path)
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	vars := make([]api.EnvVar, 0, len(keys))
	for _, key := range keys {
		value, ok := data[key].(string)
		if !ok {
			return nil, fmt.Errorf("vault field %s is not a string", key)
		}
		vars = append(vars, api.EnvVar{Key: key, Value: value})
	}

	s.log.Debug("loaded secrets from vault",
		slog.String("path", path),
		slog.Int("count", len(vars)))
	return vars, nil
}
