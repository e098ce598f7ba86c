package trust

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blackyblack/identity-server/internal/apierr"
)

// SQLStore is the durable TrustStore backend, gorm over a pure-Go sqlite
// driver so the binary stays cgo-free. Ordering for IncomingVouches and
// PenaltiesOf follows an autoincrementing seq column rather than SQL's
// unspecified row order, matching MemoryStore's insertion-order guarantee.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (creating if absent) a sqlite database at dsn and
// migrates the schema.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, apierr.Internalf(err, "opening trust store database")
	}
	if err := db.AutoMigrate(&vouchModel{}, &proofModel{}, &penaltyModel{}, &nonceModel{}); err != nil {
		return nil, apierr.Internalf(err, "migrating trust store schema")
	}
	return &SQLStore{db: db}, nil
}

// DB exposes the underlying *gorm.DB, e.g. so a SQLNonceStore can share
// the same connection and migrated schema.
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

func (s *SQLStore) InsertVouch(voucher, vouchee string, ts int64) error {
	m := vouchModel{Voucher: voucher, Vouchee: vouchee, Timestamp: ts}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "voucher"}, {Name: "vouchee"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&m)
	if res.Error != nil {
		return apierr.Internalf(res.Error, "insert vouch")
	}
	return nil
}

func (s *SQLStore) IncomingVouches(u string) ([]Vouch, error) {
	var rows []vouchModel
	if err := s.db.Where("vouchee = ?", u).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, apierr.Internalf(err, "incoming vouches")
	}
	return vouchesFromModels(rows), nil
}

func (s *SQLStore) OutgoingVouches(u string) ([]Vouch, error) {
	var rows []vouchModel
	if err := s.db.Where("voucher = ?", u).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, apierr.Internalf(err, "outgoing vouches")
	}
	return vouchesFromModels(rows), nil
}

func vouchesFromModels(rows []vouchModel) []Vouch {
	out := make([]Vouch, 0, len(rows))
	for _, r := range rows {
		out = append(out, Vouch{Voucher: r.Voucher, Vouchee: r.Vouchee, Timestamp: r.Timestamp})
	}
	return out
}

func (s *SQLStore) GetProof(u string) (Proof, bool, error) {
	var m proofModel
	err := s.db.Where("user = ?", u).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return Proof{}, false, nil
	}
	if err != nil {
		return Proof{}, false, apierr.Internalf(err, "get proof")
	}
	return Proof{User: m.User, Balance: m.Amount, Timestamp: m.Timestamp, ProofID: m.ProofID}, true, nil
}

func (s *SQLStore) SetProof(u string, balance, ts int64, proofID string) error {
	m := proofModel{User: u, Amount: balance, ProofID: proofID, Timestamp: ts}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "proof_id", "timestamp"}),
	}).Create(&m)
	if res.Error != nil {
		return apierr.Internalf(res.Error, "set proof")
	}
	return nil
}

func (s *SQLStore) PenaltiesOf(u string) ([]Penalty, error) {
	var rows []penaltyModel
	if err := s.db.Where("target = ?", u).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, apierr.Internalf(err, "penalties of")
	}
	out := make([]Penalty, 0, len(rows))
	for _, r := range rows {
		out = append(out, Penalty{ProofID: r.ProofID, Target: r.Target, Moderator: r.Moderator, Balance: r.Amount, Timestamp: r.Timestamp})
	}
	return out, nil
}

func (s *SQLStore) InsertPenalty(proofID, target, moderator string, balance, ts int64) error {
	m := penaltyModel{ProofID: proofID, Target: target, Moderator: moderator, Amount: balance, Timestamp: ts}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proof_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"target", "moderator", "amount", "timestamp"}),
	}).Create(&m)
	if res.Error != nil {
		return apierr.Internalf(res.Error, "insert penalty")
	}
	return nil
}
