// Package trust implements the TrustStore (§4.4): the repository of
// vouches, proofs, and penalties the engine and action pipeline operate
// over. Two backends are provided — MemoryStore for tests and small
// deployments, SQLStore (gorm + glebarez/sqlite) for durable deployments —
// and both must satisfy identical semantics against the Store interface.
package trust

// Vouch is a directed edge voucher -> vouchee, timestamped at the most
// recent (re-)issuance.
type Vouch struct {
	Voucher   string
	Vouchee   string
	Timestamp int64
}

// Proof is the single active moderator-granted balance for a user.
type Proof struct {
	User      string
	Balance   int64
	Timestamp int64
	ProofID   string
}

// Penalty is a moderator-issued record targeting a user, keyed globally by
// ProofID (§9: proof_id-keyed, not user-keyed — a reused proof_id
// overwrites the prior penalty under that id).
type Penalty struct {
	ProofID   string
	Target    string
	Moderator string
	Balance   int64
	Timestamp int64
}
