package api

import "time"

// Header names sent on every request to the provisioning API.
const (
	// APIKeyHeader carries the caller's API key.
	APIKeyHeader = "X-API-Key"

	// ClientIDHeader identifies the client implementation and version.
	ClientIDHeader = "X-Client-ID"

	// RequestIDHeader carries a per-request UUID for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// EnvVar is a single secret environment variable destined for a confidential
// VM. A slice of these is the full secret payload for one deployment; key
// order is irrelevant and duplicate keys resolve last-write-wins at parse
// time.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EnvPayload is the canonical serialized form of a secret set. This exact
// JSON shape is what gets encrypted, so both sides must agree on it.
type EnvPayload struct {
	Env []EnvVar `json:"env"`
}

// Pool describes one execution pool able to host confidential VMs.
type Pool struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	Available bool   `json:"available"`
	Online    bool   `json:"online"`
}

// VMConfig is the unencrypted deployment configuration. It is submitted in
// clear both to request a deployment-bound encryption key and as part of the
// final create request. The remote side derives the encryption key from this
// content, so the config must not be mutated between the key request and the
// final submission.
type VMConfig struct {
	PoolID         int64  `json:"pool_id"`
	Name           string `json:"name"`
	Image          string `json:"image"`
	VCPU           int    `json:"vcpu"`
	MemoryMB       int    `json:"memory_mb"`
	DiskGB         int    `json:"disk_gb"`
	ComposeFile    string `json:"compose_file"`
	KMSEnabled     bool   `json:"kms_enabled"`
	GatewayEnabled bool   `json:"gateway_enabled"`
}

// EncryptionKeyResponse is the per-deployment encryption key material. It is
// consumed once: fetched for a single submission attempt and never reused.
type EncryptionKeyResponse struct {
	// EnvPubkey is the X25519 public key for secret encryption, hex encoded.
	EnvPubkey string `json:"env_pubkey"`

	// AppIDSalt is an opaque salt the service uses to derive the app identity.
	AppIDSalt string `json:"app_id_salt"`
}

// CreateDeploymentRequest is the final submission payload: the original
// configuration plus the encrypted secret envelope and the key material it
// was encrypted against.
type CreateDeploymentRequest struct {
	VMConfig

	// EncryptedEnv is the hex envelope produced by cryptoutils.EncryptEnvVars,
	// or empty when the deployment carries no secrets.
	EncryptedEnv string `json:"encrypted_env"`

	EnvPubkey string `json:"env_pubkey"`
	AppIDSalt string `json:"app_id_salt"`
}

// Deployment identifies a newly created deployment.
type Deployment struct {
	ID     int64  `json:"id"`
	AppID  string `json:"app_id"`
	AppURL string `json:"app_url"`
	Status string `json:"status"`
}

// DeploymentStatus is a read-only snapshot of a deployment's provisioning
// state. Each poll supersedes the previous snapshot.
type DeploymentStatus struct {
	ID        int64     `json:"id"`
	AppID     string    `json:"app_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// PublicURLs is filled in by the best-effort network-info enrichment
	// after the deployment reaches running.
	PublicURLs []string `json:"public_urls,omitempty"`
}

// NetworkInfo describes the network exposure of a running deployment.
type NetworkInfo struct {
	IsOnline   bool     `json:"is_online"`
	PublicURLs []string `json:"public_urls"`
}

// ComposeConfig is the currently bound configuration of an existing
// deployment, including the encryption public key the deployment was created
// with. Upgrades encrypt against this key instead of requesting a new one.
type ComposeConfig struct {
	ComposeFile string `json:"compose_file"`
	EnvPubkey   string `json:"env_pubkey"`
	AppIDSalt   string `json:"app_id_salt"`
}

// UpgradeRequest replaces the configuration of an existing deployment.
type UpgradeRequest struct {
	ComposeFile  string `json:"compose_file"`
	EncryptedEnv string `json:"encrypted_env"`
	AllowRestart bool   `json:"allow_restart"`
}

// UpgradeResponse is the service's acknowledgement of a configuration
// replacement.
type UpgradeResponse struct {
	Detail string `json:"detail"`
}

// User is the identity bound to the API key in use.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Team     string `json:"team"`
}
