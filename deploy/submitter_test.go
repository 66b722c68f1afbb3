package deploy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/apitest"
	"github.com/cvmcloud/deploy-client/cryptoutils"
	"github.com/cvmcloud/deploy-client/transport"
)

func newTestStack(t *testing.T) (*apitest.Server, *Submitter) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := apitest.NewServer(log)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	tc := transport.NewClient(&transport.Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		MaxRetries:     -1,
		RetryBaseDelay: time.Millisecond,
		Log:            log,
	})
	return srv, NewSubmitter(NewClient(tc), log)
}

func validSpec() *WorkloadSpec {
	return &WorkloadSpec{
		Name:        "orderbook",
		Image:       "cvm-base:0.4",
		ComposeFile: "services:\n  app:\n    image: orderbook:1.2\n",
		EnvVars: []api.EnvVar{
			{Key: "DATABASE_URL", Value: "postgres://orderbook@db/main"},
			{Key: "API_TOKEN", Value: "tok-456"},
		},
	}
}

func TestSubmitEncryptsSecretsAgainstDeploymentKey(t *testing.T) {
	srv, submitter := newTestStack(t)

	deployment, err := submitter.Submit(context.Background(), validSpec())
	require.NoError(t, err)
	require.NotEmpty(t, deployment.AppID)
	require.NotEmpty(t, deployment.AppURL)

	created := srv.CreatedDeployments()
	require.Len(t, created, 1)
	require.Equal(t, srv.PubkeyHex, created[0].EnvPubkey)
	require.Equal(t, srv.AppIDSalt, created[0].AppIDSalt)

	// Only the holder of the deployment key can read the secrets.
	decrypted, err := cryptoutils.DecryptEnvVars(srv.Privkey, created[0].EncryptedEnv)
	require.NoError(t, err)
	require.Equal(t, validSpec().EnvVars, decrypted)
}

func TestSubmitConfigMatchesKeyRequest(t *testing.T) {
	srv, submitter := newTestStack(t)

	_, err := submitter.Submit(context.Background(), validSpec())
	require.NoError(t, err)

	keyReqs := srv.KeyRequests()
	created := srv.CreatedDeployments()
	require.Len(t, keyReqs, 1)
	require.Len(t, created, 1)

	// The configuration the key was requested for must be submitted
	// unmodified; the service derives the key from its content.
	require.Equal(t, keyReqs[0], created[0].VMConfig)
	require.Equal(t, DefaultVCPU, created[0].VCPU)
	require.Equal(t, DefaultMemoryMB, created[0].MemoryMB)
	require.Equal(t, DefaultDiskGB, created[0].DiskGB)
}

func TestSubmitWithoutSecretsSkipsEncryption(t *testing.T) {
	srv, submitter := newTestStack(t)

	spec := validSpec()
	spec.EnvVars = nil

	_, err := submitter.Submit(context.Background(), spec)
	require.NoError(t, err)

	created := srv.CreatedDeployments()
	require.Len(t, created, 1)
	require.Empty(t, created[0].EncryptedEnv)
	require.Equal(t, srv.PubkeyHex, created[0].EnvPubkey)
}

func TestSubmitValidatesBeforeAnyNetworkCall(t *testing.T) {
	srv, submitter := newTestStack(t)

	for _, mutate := range []func(*WorkloadSpec){
		func(s *WorkloadSpec) { s.Name = "" },
		func(s *WorkloadSpec) { s.Image = "" },
		func(s *WorkloadSpec) { s.ComposeFile = "" },
	} {
		spec := validSpec()
		mutate(spec)

		_, err := submitter.Submit(context.Background(), spec)
		require.ErrorIs(t, err, ErrInvalidSpec)
	}

	require.Empty(t, srv.KeyRequests())
	require.Empty(t, srv.CreatedDeployments())
}

func TestSubmitResolvesFirstQualifyingPool(t *testing.T) {
	srv, submitter := newTestStack(t)
	srv.SetPools(
		api.Pool{ID: 10, Name: "full", Available: false, Online: true},
		api.Pool{ID: 11, Name: "down", Available: true, Online: false},
		api.Pool{ID: 12, Name: "ok", Available: true, Online: true},
		api.Pool{ID: 13, Name: "also-ok", Available: true, Online: true},
	)

	_, err := submitter.Submit(context.Background(), validSpec())
	require.NoError(t, err)

	keyReqs := srv.KeyRequests()
	require.Len(t, keyReqs, 1)
	require.Equal(t, int64(12), keyReqs[0].PoolID)
}

func TestSubmitFailsWhenNoPoolQualifies(t *testing.T) {
	srv, submitter := newTestStack(t)
	srv.SetPools(
		api.Pool{ID: 10, Name: "full", Available: false, Online: true},
		api.Pool{ID: 11, Name: "down", Available: true, Online: false},
	)

	_, err := submitter.Submit(context.Background(), validSpec())
	require.ErrorIs(t, err, ErrNoAvailablePool)
	require.Empty(t, srv.KeyRequests())
}

func TestSubmitPinnedPoolSkipsResolution(t *testing.T) {
	srv, submitter := newTestStack(t)
	srv.SetPools() // empty list would fail automatic resolution

	spec := validSpec()
	spec.PoolID = 7

	_, err := submitter.Submit(context.Background(), spec)
	require.NoError(t, err)

	keyReqs := srv.KeyRequests()
	require.Len(t, keyReqs, 1)
	require.Equal(t, int64(7), keyReqs[0].PoolID)
}

func TestUpgradeUsesBoundKey(t *testing.T) {
	srv, submitter := newTestStack(t)

	vars := []api.EnvVar{{Key: "API_TOKEN", Value: "rotated"}}
	resp, err := submitter.Upgrade(context.Background(), "app-1", &UpgradeSpec{
		ComposeFile:  "services:\n  app:\n    image: orderbook:1.3\n",
		EnvVars:      vars,
		AllowRestart: true,
	})
	require.NoError(t, err)
	require.Equal(t, "accepted", resp.Detail)

	// No fresh key is requested for an upgrade.
	require.Empty(t, srv.KeyRequests())

	upgrades := srv.Upgrades()
	require.Len(t, upgrades, 1)
	require.True(t, upgrades[0].AllowRestart)

	decrypted, err := cryptoutils.DecryptEnvVars(srv.Privkey, upgrades[0].EncryptedEnv)
	require.NoError(t, err)
	require.Equal(t, vars, decrypted)
}

func TestUpgradeValidation(t *testing.T) {
	_, submitter := newTestStack(t)

	_, err := submitter.Upgrade(context.Background(), "", &UpgradeSpec{ComposeFile: "services: {}"})
	require.ErrorIs(t, err, ErrInvalidSpec)

	_, err = submitter.Upgrade(context.Background(), "app-1", &UpgradeSpec{})
	require.ErrorIs(t, err, ErrInvalidSpec)
}

func TestMonitorAgainstFakeServer(t *testing.T) {
	srv, submitter := newTestStack(t)
	srv.ScriptStatuses("creating", "starting", "running")

	poller := NewPoller(submitter.client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	result, err := poller.Monitor(context.Background(), "app-1", MonitorConfig{
		Interval:    2 * time.Millisecond,
		MaxAttempts: 10,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, result.Outcome)
	require.Equal(t, []string{"https://app-1.cvm.example.com"}, result.Snapshot.PublicURLs)
	require.Equal(t, int64(3), srv.StatusRequests())
}
