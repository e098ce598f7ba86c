package trust

// vouchModel backs the vouches table (§6.4): unique on (voucher,
// vouchee), which is the conflict target of SQLStore.InsertVouch, and
// indexed on both sides so IncomingVouches/OutgoingVouches don't scan.
// The sqlite dialector makes the autoIncrement seq column the table's
// primary key, so the pair's uniqueness comes from idx_vouch_pair.
type vouchModel struct {
	Voucher   string `gorm:"primaryKey;column:voucher;uniqueIndex:idx_vouch_pair"`
	Vouchee   string `gorm:"primaryKey;column:vouchee;uniqueIndex:idx_vouch_pair;index:idx_vouchee_side"`
	Timestamp int64  `gorm:"column:timestamp;not null"`
	Seq       uint64 `gorm:"column:seq;autoIncrement;not null"`
}

func (vouchModel) TableName() string { return "vouches" }

// proofModel backs the proofs table: PK user, one active proof per user.
type proofModel struct {
	User      string `gorm:"primaryKey;column:user"`
	Amount    int64  `gorm:"column:amount;not null"`
	ProofID   string `gorm:"column:proof_id;not null"`
	Timestamp int64  `gorm:"column:timestamp;not null"`
}

func (proofModel) TableName() string { return "proofs" }

// penaltyModel backs moderator_penalties, keyed by proof_id per the §9
// resolution (the SQL migration's user-PK schema was ambiguous with the
// in-memory proof_id-keyed semantics; proof_id-keyed is what the tests
// exercise, so the schema follows that here rather than the migration).
// As with vouchModel, seq becomes the sqlite primary key, so proof_id
// carries its own unique index for SQLStore.InsertPenalty to conflict on.
type penaltyModel struct {
	ProofID   string `gorm:"primaryKey;column:proof_id;uniqueIndex:idx_penalty_proof_id"`
	Target    string `gorm:"column:target;not null;index:idx_penalty_target"`
	Moderator string `gorm:"column:moderator;not null"`
	Amount    int64  `gorm:"column:amount;not null"`
	Timestamp int64  `gorm:"column:timestamp;not null"`
	Seq       uint64 `gorm:"column:seq;autoIncrement;not null"`
}

func (penaltyModel) TableName() string { return "moderator_penalties" }

// nonceModel backs the nonces table (§6.4), PK (namespace, signer).
type nonceModel struct {
	Namespace  string `gorm:"primaryKey;column:namespace"`
	Signer     string `gorm:"primaryKey;column:signer"`
	UsedNonce  int64  `gorm:"column:used_nonce;not null"`
}

func (nonceModel) TableName() string { return "nonces" }
