package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/cryptoutils"
)

var (
	// ErrInvalidSpec indicates a workload spec missing required fields. It is
	// raised before any network call and never retried.
	ErrInvalidSpec = errors.New("invalid workload spec")

	// ErrNoAvailablePool indicates no execution pool reported itself both
	// available and online during automatic pool resolution.
	ErrNoAvailablePool = errors.New("no available execution pool")
)

// Defaults applied to a WorkloadSpec that leaves compute shape unset.
const (
	DefaultVCPU     = 1
	DefaultMemoryMB = 2048
	DefaultDiskGB   = 20
)

// WorkloadSpec is the caller's description of one confidential workload.
type WorkloadSpec struct {
	// Name identifies the deployment. Required.
	Name string

	// Image is the CVM base image. Required.
	Image string

	// ComposeFile is the docker compose manifest text. Required; the client
	// treats it as opaque.
	ComposeFile string

	// VCPU, MemoryMB and DiskGB define the compute shape. Zero values take
	// the package defaults.
	VCPU     int
	MemoryMB int
	DiskGB   int

	// KMSEnabled and GatewayEnabled toggle service-side features.
	KMSEnabled     bool
	GatewayEnabled bool

	// PoolID pins the execution pool. Zero requests automatic resolution.
	PoolID int64

	// EnvVars are the secret environment variables. They never leave the
	// client unencrypted.
	EnvVars []api.EnvVar
}

// Validate checks required fields without touching the network.
func (s *WorkloadSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidSpec)
	}
	if s.ComposeFile == "" {
		return fmt.Errorf("%w: compose file is required", ErrInvalidSpec)
	}
	return nil
}

// UpgradeSpec describes a configuration replacement for an existing
// deployment.
type UpgradeSpec struct {
	// ComposeFile is the replacement compose manifest text. Required.
	ComposeFile string

	// EnvVars are replacement secrets, encrypted against the key already
	// bound to the deployment. Empty leaves the secrets untouched.
	EnvVars []api.EnvVar

	// AllowRestart permits the service to restart the workload to apply the
	// new configuration.
	AllowRestart bool
}

// Submitter drives the multi-step submission protocol: validate, resolve a
// pool, fetch a deployment-bound encryption key, encrypt secrets, submit.
// A failure at any step aborts the whole submission; the caller retries by
// calling Submit again, which fetches a fresh key.
type Submitter struct {
	client *Client
	log    *slog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client *Client, log *slog.Logger) *Submitter {
	return &Submitter{client: client, log: log}
}

// Submit provisions a new confidential workload and returns its identity.
//
// The steps run strictly in order. The unencrypted configuration assembled
// in step 3 is the input the service derives the encryption key from, so it
// is submitted byte-identical in the final request. Exactly one key is
// fetched and exactly one encrypted payload derived per call; a failed call
// never reuses key material on retry.
func (s *Submitter) Submit(ctx context.Context, spec *WorkloadSpec) (*api.Deployment, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	poolID := spec.PoolID
	if poolID == 0 {
		pool, err := s.resolvePool(ctx)
		if err != nil {
			return nil, err
		}
		s.log.Debug("resolved execution pool",
			slog.Int64("pool_id", pool.ID),
			slog.String("pool_name", pool.Name))
		poolID = pool.ID
	}

	cfg := s.assembleConfig(spec, poolID)

	key, err := s.client.GetEncryptionKey(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	encryptedEnv := ""
	if len(spec.EnvVars) > 0 {
		encryptedEnv, err = cryptoutils.EncryptEnvVars(spec.EnvVars, key.EnvPubkey)
		if err != nil {
			return nil, err
		}
	}

	deployment, err := s.client.CreateDeployment(ctx, &api.CreateDeploymentRequest{
		VMConfig:     cfg,
		EncryptedEnv: encryptedEnv,
		EnvPubkey:    key.EnvPubkey,
		AppIDSalt:    key.AppIDSalt,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deployment submitted",
		slog.Int64("id", deployment.ID),
		slog.String("app_id", deployment.AppID),
		slog.String("app_url", deployment.AppURL))
	return deployment, nil
}

// Upgrade replaces the configuration of an existing deployment. Unlike
// Submit it encrypts against the public key already bound to the deployment
// instead of requesting a new one.
func (s *Submitter) Upgrade(ctx context.Context, appID string, spec *UpgradeSpec) (*api.UpgradeResponse, error) {
	if appID == "" {
		return nil, fmt.Errorf("%w: app id is required", ErrInvalidSpec)
	}
	if spec.ComposeFile == "" {
		return nil, fmt.Errorf("%w: compose file is required", ErrInvalidSpec)
	}

	compose, err := s.client.GetCompose(ctx, appID)
	if err != nil {
		return nil, err
	}

	encryptedEnv := ""
	if len(spec.EnvVars) > 0 {
		encryptedEnv, err = cryptoutils.EncryptEnvVars(spec.EnvVars, compose.EnvPubkey)
		if err != nil {
			return nil, err
		}
	}

	resp, err := s.client.ReplaceCompose(ctx, appID, &api.UpgradeRequest{
		ComposeFile:  spec.ComposeFile,
		EncryptedEnv: encryptedEnv,
		AllowRestart: spec.AllowRestart,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deployment upgraded", slog.String("app_id", appID))
	return resp, nil
}

// resolvePool picks the first pool reporting itself available and online, in
// the order the service returned them.
func (s *Submitter) resolvePool(ctx context.Context) (*api.Pool, error) {
	pools, err := s.client.ListPools(ctx)
	if err != nil {
		return nil, err
	}

	for i := range pools {
		if pools[i].Available && pools[i].Online {
			return &pools[i], nil
		}
	}
	return nil, ErrNoAvailablePool
}

func (s *Submitter) assembleConfig(spec *WorkloadSpec, poolID int64) api.VMConfig {
	cfg := api.VMConfig{
		PoolID:         poolID,
		Name:           spec.Name,
		Image:          spec.Image,
		VCPU:           spec.VCPU,
		MemoryMB:       spec.MemoryMB,
		DiskGB:         spec.DiskGB,
		ComposeFile:    spec.ComposeFile,
		KMSEnabled:     spec.KMSEnabled,
		GatewayEnabled: spec.GatewayEnabled,
	}
	if cfg.VCPU == 0 {
		cfg.VCPU = DefaultVCPU
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = DefaultMemoryMB
	}
	if cfg.DiskGB == 0 {
		cfg.DiskGB = DefaultDiskGB
	}
	return cfg
}
