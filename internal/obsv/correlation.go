package obsv

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// CorrelationID hashes a canonical message (or any other sensitive wire
// payload) into a short, non-reversible identifier suitable for log
// lines — the raw canonical message and signature must never be logged,
// since they're sufficient to replay or analyze a signed action.
func CorrelationID(canonicalMessage []byte) string {
	sum := blake3.Sum256(canonicalMessage)
	return hex.EncodeToString(sum[:8])
}
