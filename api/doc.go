// Package api defines the wire types and header constants for the CVM cloud
// provisioning API consumed by this client.
//
// Every remote operation the client performs has an explicit request and
// response type here, validated at the boundary, so the rest of the codebase
// never branches on untyped response shapes. All bodies are JSON; all
// requests carry an API key and a fixed client-identifier header.
//
// # Remote operations
//
//   - GET  /api/v1/auth/me                 -> User
//   - GET  /api/v1/pools                   -> []Pool
//   - POST /api/v1/cvms/encryption-key     (VMConfig) -> EncryptionKeyResponse
//   - POST /api/v1/cvms                    (CreateDeploymentRequest) -> Deployment
//   - GET  /api/v1/cvms/{app_id}           -> DeploymentStatus
//   - GET  /api/v1/cvms/{app_id}/compose   -> ComposeConfig
//   - PUT  /api/v1/cvms/{app_id}/compose   (UpgradeRequest) -> UpgradeResponse
//   - GET  /api/v1/cvms/{app_id}/network   -> NetworkInfo
package api
