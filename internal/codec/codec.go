// Package codec handles the wire-level encodings the core protocol relies
// on: base58 identities, base64 signatures, and canonical message framing
// for each signed action kind.
package codec

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/blackyblack/identity-server/internal/apierr"
)

// DecodePublicKey decodes a base58-encoded identity into its raw bytes.
// Ed25519 public keys are 32 bytes; the caller checks the length.
func DecodePublicKey(b58 string) ([]byte, error) {
	if b58 == "" {
		return nil, apierr.BadRequestf("empty identity")
	}
	decoded := base58.Decode(b58)
	if len(decoded) == 0 {
		return nil, apierr.BadRequestf("invalid base58 identity %q", b58)
	}
	return decoded, nil
}

// EncodePublicKey encodes raw identity bytes to their base58 wire form.
func EncodePublicKey(raw []byte) string {
	return base58.Encode(raw)
}

// DecodeSignature decodes a base64-encoded signature into raw bytes.
func DecodeSignature(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, apierr.BadRequestf("empty signature")
	}
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apierr.BadRequestf("invalid base64 signature: %v", err)
	}
	return decoded, nil
}

// EncodeSignature encodes raw signature bytes to their base64 wire form.
func EncodeSignature(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Action names the five canonical-message shapes in §4.1.
type Action string

const (
	ActionVouch      Action = "vouch"
	ActionProof      Action = "proof"
	ActionPunish     Action = "punish"
	ActionModerators Action = "moderators"
	ActionAdmins     Action = "admins"
)

// CanonicalMessage builds the '/'-joined canonical message for the given
// action. user is the base58 string exactly as it appeared in the URL
// path. balance and proofID are only used by proof/punish.
func CanonicalMessage(action Action, user string, nonce int64, balance int64, proofID string) []byte {
	var sb strings.Builder
	sb.WriteString(string(action))
	sb.WriteByte('/')
	sb.WriteString(user)
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatInt(nonce, 10))
	switch action {
	case ActionProof, ActionPunish:
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatInt(balance, 10))
		sb.WriteByte('/')
		sb.WriteString(proofID)
	}
	return []byte(sb.String())
}

// String is a convenience used mostly by tests and logs.
func (a Action) String() string { return string(a) }

// Validate reports whether a is a known canonical-message action.
func (a Action) Validate() error {
	switch a {
	case ActionVouch, ActionProof, ActionPunish, ActionModerators, ActionAdmins:
		return nil
	default:
		return apierr.BadRequestf("unknown action %q", a)
	}
}
