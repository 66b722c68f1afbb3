// Package main (cmd/deploy-client) implements the command-line client for the
// CVM cloud provisioning API.
//
// The client submits confidential workload configurations to the cloud,
// encrypting secret environment variables against the deployment's attested
// encryption key before anything leaves the machine, and polls deployments
// until they reach a terminal state.
//
// Commands:
//
//	deploy  - Submit a new workload. The compose manifest is fetched from a
//	          local path, an HTTP(S) URL, an S3 bucket or IPFS; secret env
//	          variables come from a dotenv file, the process environment or
//	          Vault. With --wait the command monitors the deployment until
//	          it runs or fails.
//
//	upgrade - Replace the compose manifest of an existing deployment,
//	          re-encrypting secrets against the key the deployment was
//	          created with.
//
//	status  - Print the current deployment status.
//
//	monitor - Poll a deployment until it reaches a terminal state, optionally
//	          resolving its public URLs to instance IPs afterwards.
//
//	pools   - List execution pools.
//
//	whoami  - Show the account the API key belongs to.
//
// The server address and API key are taken from --server-addr and --api-key,
// or from the CVM_SERVER_ADDR and CVM_API_KEY environment variables.
package main
