package trust

// Store is the TrustStore capability (§4.4). Every operation must behave
// identically whether backed by MemoryStore or SQLStore.
type Store interface {
	// InsertVouch upserts by (voucher, vouchee): re-issuing updates the
	// timestamp in place rather than creating a duplicate edge.
	InsertVouch(voucher, vouchee string, ts int64) error

	// IncomingVouches returns every vouch v -> u, in store insertion order
	// (the engine's top-5 ranking relies on this order for stable ties).
	IncomingVouches(u string) ([]Vouch, error)

	// OutgoingVouches returns every vouch u -> v.
	OutgoingVouches(u string) ([]Vouch, error)

	// GetProof returns the active proof for u, if any.
	GetProof(u string) (Proof, bool, error)

	// SetProof upserts the proof record for u, replacing any prior one.
	SetProof(u string, balance, ts int64, proofID string) error

	// PenaltiesOf returns every penalty targeting u.
	PenaltiesOf(u string) ([]Penalty, error)

	// InsertPenalty upserts by proofID.
	InsertPenalty(proofID, target, moderator string, balance, ts int64) error
}
