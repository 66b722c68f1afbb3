// Package apitest provides an in-process fake of the CVM provisioning API
// for tests.
//
// The fake holds a real X25519 keypair, so a test can submit a deployment
// through the full client stack and then decrypt the captured secret
// envelope with the server's private key. Status sequences are scripted per
// test, and failures can be injected on the status and network endpoints to
// exercise the retry and error handling paths.
package apitest
