// Package cryptoutils packages deployment secrets for transfer into an
// attested confidential VM.
//
// Secrets leave the caller's trust boundary exactly once, encrypted against
// a per-deployment X25519 public key the provisioning service hands out, so
// only the attested remote environment can decrypt them. The scheme is
// hybrid encryption:
//
//   - X25519 key agreement with a fresh ephemeral keypair per call
//   - AES-256-GCM keyed directly by the 32-byte shared secret
//   - a fresh 96-bit random nonce per call
//
// # Envelope format
//
// The encrypted envelope is a hex-encoded byte string:
//
//	ephemeral_public_key(32 bytes) || nonce(12 bytes) || ciphertext_with_tag
//
// Decoders slice exactly these boundaries; the first two fields are
// fixed-size by the curve and the AEAD nonce size, so no length prefix is
// needed.
//
// The package is stateless; all functions are safe for concurrent use.
package cryptoutils
