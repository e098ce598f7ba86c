// Package nonce implements the NonceRegistry (§4.2, C3): a per-(action
// namespace, signer public key) replay-prevention store that only
// remembers the latest accepted nonce. The monotonicity policy lives here;
// where the single number is actually kept is delegated to a Store
// (MemoryStore by default, or a durable SQL-backed store — see
// internal/trust/sqlnonce.go).
package nonce

import (
	"github.com/google/orderedcode"

	"github.com/blackyblack/identity-server/internal/apierr"
)

// Namespace names one of the four independent nonce namespaces in §3.
// punish deliberately reuses Proof — see SPEC_FULL.md §9.
type Namespace string

const (
	Vouch      Namespace = "vouch"
	Proof      Namespace = "proof"
	Moderators Namespace = "moderators"
	Admins     Namespace = "admins"
)

// Registry is the NonceRegistry. If two records exist for one key — a
// storage corruption per §4.2 — LoadMax must return the larger, so
// IsConsumed still fails safe; the Store implementations satisfy that by
// construction since (namespace, signer) is their primary/map key and can
// only ever hold one value.
type Registry struct {
	store Store
}

// NewRegistry wraps store with the NonceRegistry policy.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// key builds a deterministic, collision-free composite key for
// (namespace, signerPK) using orderedcode so that no delimiter-injection
// between the two fields can alias distinct pairs onto the same key.
func key(ns Namespace, signerPK []byte) (string, error) {
	encoded, err := orderedcode.Append(nil, string(ns), string(signerPK))
	if err != nil {
		return "", apierr.Internalf(err, "failed to encode nonce key")
	}
	return string(encoded), nil
}

// IsConsumed reports whether nonce has already been consumed for
// (ns, signerPK): true iff a stored record exists with stored ≥ nonce.
func (r *Registry) IsConsumed(ns Namespace, signerPK []byte, requested int64) (bool, error) {
	stored, ok, err := r.store.LoadMax(ns, signerPK)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return stored >= requested, nil
}

// Consume atomically accepts nonce iff it is strictly greater than the
// currently stored value (or no record exists yet), setting the stored
// value to nonce. It returns a NonceConsumed apierr.Error otherwise.
func (r *Registry) Consume(ns Namespace, signerPK []byte, requested int64) error {
	accepted, err := r.store.TrySet(ns, signerPK, requested)
	if err != nil {
		return err
	}
	if !accepted {
		return apierr.NonceConsumedf("nonce %d already consumed for namespace %q", requested, ns)
	}
	return nil
}
