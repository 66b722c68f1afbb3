package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/transport"
)

// Per-operation timeout defaults. Status queries are short so the polling
// loop keeps its cadence; submissions are long because the service validates
// and schedules the workload synchronously.
const (
	DefaultStatusTimeout = 8 * time.Second
	DefaultSubmitTimeout = 2 * time.Minute
)

const (
	pathUser          = "/api/v1/auth/me"
	pathPools         = "/api/v1/pools"
	pathEncryptionKey = "/api/v1/cvms/encryption-key"
	pathDeployments   = "/api/v1/cvms"
)

func pathStatus(appID string) string  { return pathDeployments + "/" + appID }
func pathCompose(appID string) string { return pathDeployments + "/" + appID + "/compose" }
func pathNetwork(appID string) string { return pathDeployments + "/" + appID + "/network" }

// Client exposes every provisioning API operation as a typed method over the
// retrying transport. It is stateless per call and safe for concurrent use.
type Client struct {
	transport *transport.Client

	statusTimeout time.Duration
	submitTimeout time.Duration
}

// NewClient wraps a transport client with typed provisioning operations.
func NewClient(tc *transport.Client) *Client {
	return &Client{
		transport:     tc,
		statusTimeout: DefaultStatusTimeout,
		submitTimeout: DefaultSubmitTimeout,
	}
}

// GetUser returns the identity bound to the API key in use.
func (c *Client) GetUser(ctx context.Context) (*api.User, error) {
	var user api.User
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pathUser,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("could not fetch user identity: %w", err)
	}
	return &user, nil
}

// ListPools returns all execution pools visible to the caller, in the order
// the service reports them.
func (c *Client) ListPools(ctx context.Context) ([]api.Pool, error) {
	var pools []api.Pool
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pathPools,
	}, &pools)
	if err != nil {
		return nil, fmt.Errorf("could not list pools: %w", err)
	}
	return pools, nil
}

// GetEncryptionKey requests a deployment-bound encryption key for the given
// configuration. The service derives the key from the configuration content,
// so the config passed here must be submitted unmodified afterwards.
func (c *Client) GetEncryptionKey(ctx context.Context, cfg *api.VMConfig) (*api.EncryptionKeyResponse, error) {
	var key api.EncryptionKeyResponse
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    pathEncryptionKey,
		Body:    cfg,
		Timeout: c.submitTimeout,
	}, &key)
	if err != nil {
		return nil, fmt.Errorf("could not fetch encryption key: %w", err)
	}
	return &key, nil
}

// CreateDeployment submits the final deployment payload.
func (c *Client) CreateDeployment(ctx context.Context, req *api.CreateDeploymentRequest) (*api.Deployment, error) {
	var deployment api.Deployment
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    pathDeployments,
		Body:    req,
		Timeout: c.submitTimeout,
	}, &deployment)
	if err != nil {
		return nil, fmt.Errorf("could not create deployment: %w", err)
	}
	return &deployment, nil
}

// GetCompose returns the configuration currently bound to a deployment,
// including the encryption public key it was created with.
func (c *Client) GetCompose(ctx context.Context, appID string) (*api.ComposeConfig, error) {
	var compose api.ComposeConfig
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pathCompose(appID),
	}, &compose)
	if err != nil {
		return nil, fmt.Errorf("could not fetch deployment configuration: %w", err)
	}
	return &compose, nil
}

// ReplaceCompose replaces the configuration of an existing deployment.
func (c *Client) ReplaceCompose(ctx context.Context, appID string, req *api.UpgradeRequest) (*api.UpgradeResponse, error) {
	var resp api.UpgradeResponse
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method:  http.MethodPut,
		Path:    pathCompose(appID),
		Body:    req,
		Timeout: c.submitTimeout,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("could not replace deployment configuration: %w", err)
	}
	return &resp, nil
}

// GetStatus fetches the current provisioning status snapshot.
func (c *Client) GetStatus(ctx context.Context, appID string) (*api.DeploymentStatus, error) {
	var status api.DeploymentStatus
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method:  http.MethodGet,
		Path:    pathStatus(appID),
		Timeout: c.statusTimeout,
	}, &status)
	if err != nil {
		return nil, fmt.Errorf("could not fetch deployment status: %w", err)
	}
	return &status, nil
}

// GetNetworkInfo fetches the network exposure of a deployment.
func (c *Client) GetNetworkInfo(ctx context.Context, appID string) (*api.NetworkInfo, error) {
	var info api.NetworkInfo
	err := c.transport.ExecuteJSON(ctx, &transport.Request{
		Method:  http.MethodGet,
		Path:    pathNetwork(appID),
		Timeout: c.statusTimeout,
	}, &info)
	if err != nil {
		return nil, fmt.Errorf("could not fetch network info: %w", err)
	}
	return &info, nil
}
