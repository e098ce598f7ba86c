// Package idcrypto is the SignatureVerifier (§4.1, C2): EdDSA-Ed25519
// verification over a canonical message and a public key. It uses
// curve25519-voi's ed25519 implementation, which rejects the small set of
// non-canonical signature encodings crypto/ed25519 historically accepted,
// rather than hand-rolling verification on top of the raw curve primitive.
package idcrypto

import (
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/blackyblack/identity-server/internal/apierr"
)

const (
	// PublicKeySize is the length in bytes of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize is the length in bytes of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// Verify checks that signature is a valid Ed25519 signature by publicKey
// over message. It returns a BadSignature apierr.Error on any mismatch,
// malformed key, or malformed signature — callers do not need to
// distinguish those cases per §7.
func Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != PublicKeySize {
		return apierr.BadSignaturef("public key must be %d bytes, got %d", PublicKeySize, len(publicKey))
	}
	if len(signature) != SignatureSize {
		return apierr.BadSignaturef("signature must be %d bytes, got %d", SignatureSize, len(signature))
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return apierr.BadSignaturef("signature verification failed")
	}
	return nil
}

// GenerateKey is exposed for tests and for cmd/hsmsign's software fallback
// path; the server itself never holds a private key.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Sign is exposed for tests that need to construct valid signed actions.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}
