// Package manifest fetches docker compose manifests from pluggable sources
// selected by URI scheme: local files, HTTP(S), S3-compatible object
// storage, and IPFS. The manifest text is opaque to the client; it is
// forwarded to the provisioning service unmodified.
package manifest
