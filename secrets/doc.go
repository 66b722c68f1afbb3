// Package secrets loads deployment secret sets from their sources: dotenv
// files, the process environment, and HashiCorp Vault KV v2 secrets.
// Sources are selected by URI scheme; see Load.
//
// The package only collects secrets. Packaging them for the attested
// environment is cryptoutils' job, and they never leave the process
// unencrypted.
package secrets
