package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"

	"github.com/cvmcloud/deploy-client/api"
)

const (
	// EnvelopeKeySize is the size of the X25519 public key prefix.
	EnvelopeKeySize = curve25519.PointSize

	// EnvelopeNonceSize is the AES-GCM nonce size used in the envelope.
	EnvelopeNonceSize = 12

	// EnvelopeTagSize is the AES-GCM authentication tag size.
	EnvelopeTagSize = 16
)

var (
	// ErrInvalidKeyFormat indicates the remote public key hex string could
	// not be decoded into a 32-byte X25519 point.
	ErrInvalidKeyFormat = errors.New("invalid encryption key format")

	// ErrEncryptionFailed indicates a failure in the underlying cipher or
	// key agreement. It is fatal to the calling operation.
	ErrEncryptionFailed = errors.New("secret encryption failed")

	// ErrInvalidEnvelope indicates decryption input that does not match the
	// envelope layout or fails authentication.
	ErrInvalidEnvelope = errors.New("invalid encrypted envelope")
)

// EncryptEnvVars encrypts a secret environment set against a remote X25519
// public key and returns a hex-encoded envelope only the holder of the
// matching private key can open.
//
// The scheme is hybrid: a fresh ephemeral X25519 keypair is generated per
// call (forward secrecy), the shared secret from the key agreement directly
// keys AES-256-GCM, and a fresh 96-bit nonce is drawn per call. Nonce reuse
// cannot occur because the key itself is never reused.
//
// Envelope layout, hex encoded:
//
//	ephemeral_public_key(32) || nonce(12) || ciphertext_with_tag
//
// The remote key may carry an optional 0x prefix.
func EncryptEnvVars(vars []api.EnvVar, remotePubkeyHex string) (string, error) {
	remotePubkey, err := DecodePubkeyHex(remotePubkeyHex)
	if err != nil {
		return "", err
	}

	// Canonical serialized form shared with the CVM-side decryptor.
	plaintext, err := json.Marshal(api.EnvPayload{Env: vars})
	if err != nil {
		return "", fmt.Errorf("%w: could not serialize secrets: %v", ErrEncryptionFailed, err)
	}

	ephemeralPriv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, ephemeralPriv); err != nil {
		return "", fmt.Errorf("%w: could not generate ephemeral key: %v", ErrEncryptionFailed, err)
	}

	ephemeralPub, err := curve25519.X25519(ephemeralPriv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	sharedSecret, err := curve25519.X25519(ephemeralPriv, remotePubkey)
	if err != nil {
		return "", fmt.Errorf("%w: key agreement failed: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, EnvelopeNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: could not generate nonce: %v", ErrEncryptionFailed, err)
	}

	aesGCM, err := newEnvelopeAEAD(sharedSecret)
	if err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	envelope := make([]byte, 0, EnvelopeKeySize+EnvelopeNonceSize+len(ciphertext))
	envelope = append(envelope, ephemeralPub...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return hex.EncodeToString(envelope), nil
}

// DecryptEnvVars opens an envelope produced by EncryptEnvVars using the
// remote side's X25519 private key. It is used by CVM-side tooling and by
// tests; the submitting client never holds the private key.
func DecryptEnvVars(privkey []byte, envelopeHex string) ([]api.EnvVar, error) {
	if len(privkey) != curve25519.ScalarSize {
		return nil, fmt.Errorf("%w: private key must be %d bytes", ErrInvalidKeyFormat, curve25519.ScalarSize)
	}

	envelope, err := hex.DecodeString(strings.TrimPrefix(envelopeHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if len(envelope) < EnvelopeKeySize+EnvelopeNonceSize+EnvelopeTagSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidEnvelope)
	}

	// Fixed-size fields need no length prefix.
	ephemeralPub := envelope[:EnvelopeKeySize]
	nonce := envelope[EnvelopeKeySize : EnvelopeKeySize+EnvelopeNonceSize]
	ciphertext := envelope[EnvelopeKeySize+EnvelopeNonceSize:]

	sharedSecret, err := curve25519.X25519(privkey, ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: key agreement failed: %v", ErrInvalidEnvelope, err)
	}

	aesGCM, err := newEnvelopeAEAD(sharedSecret)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	var payload api.EnvPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: unexpected plaintext format: %v", ErrInvalidEnvelope, err)
	}

	return payload.Env, nil
}

// DecodePubkeyHex decodes a hex-encoded X25519 public key, accepting an
// optional 0x prefix. Odd length, invalid characters, or a length other than
// 32 bytes fail with ErrInvalidKeyFormat.
func DecodePubkeyHex(pubkeyHex string) ([]byte, error) {
	cleaned := strings.TrimPrefix(pubkeyHex, "0x")
	pubkey, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if len(pubkey) != EnvelopeKeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKeyFormat, EnvelopeKeySize, len(pubkey))
	}
	return pubkey, nil
}

// NewEnvKeypair generates an X25519 keypair for secret decryption. The
// public key is returned hex encoded in the form the provisioning API hands
// out. Used by tests and local development servers.
func NewEnvKeypair() (privkey []byte, pubkeyHex string, err error) {
	privkey = make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, privkey); err != nil {
		return nil, "", fmt.Errorf("could not generate private key: %w", err)
	}

	pubkey, err := curve25519.X25519(privkey, curve25519.Basepoint)
	if err != nil {
		return nil, "", err
	}

	return privkey, hex.EncodeToString(pubkey), nil
}

// newEnvelopeAEAD keys AES-256-GCM directly with the 32-byte X25519 shared
// secret. No additional KDF stretching is applied beyond what the AEAD
// requires.
func newEnvelopeAEAD(sharedSecret []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create cipher: %v", ErrEncryptionFailed, err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create GCM: %v", ErrEncryptionFailed, err)
	}

	return aesGCM, nil
}
