package trust

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blackyblack/identity-server/internal/apierr"
	"github.com/blackyblack/identity-server/internal/codec"
	"github.com/blackyblack/identity-server/internal/nonce"
)

// SQLNonceStore is a nonce.Store backed by the same database as a
// SQLStore, satisfying the nonces table shape from §6.4. It gives the
// SQL deployment durable replay protection instead of the process-memory
// nonce.MemoryStore.
type SQLNonceStore struct {
	db *gorm.DB
}

// NewSQLNonceStore wraps db, which must already have nonceModel migrated
// (OpenSQLStore does this).
func NewSQLNonceStore(db *gorm.DB) *SQLNonceStore {
	return &SQLNonceStore{db: db}
}

func (s *SQLNonceStore) LoadMax(ns nonce.Namespace, signerPK []byte) (int64, bool, error) {
	var m nonceModel
	err := s.db.Where("namespace = ? AND signer = ?", string(ns), codec.EncodePublicKey(signerPK)).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apierr.Internalf(err, "load nonce")
	}
	return m.UsedNonce, true, nil
}

// TrySet performs the compare-and-set inside a transaction: the SQL
// backend has no lock-striped map to lean on, so serializing read+write
// per key is how it gets the same monotonicity guarantee.
func (s *SQLNonceStore) TrySet(ns nonce.Namespace, signerPK []byte, requested int64) (bool, error) {
	signer := codec.EncodePublicKey(signerPK)
	accepted := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var m nonceModel
		err := tx.Where("namespace = ? AND signer = ?", string(ns), signer).First(&m).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			accepted = true
		case err != nil:
			return err
		default:
			accepted = m.UsedNonce < requested
		}
		if !accepted {
			return nil
		}

		row := nonceModel{Namespace: string(ns), Signer: signer, UsedNonce: requested}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "signer"}},
			DoUpdates: clause.AssignmentColumns([]string{"used_nonce"}),
		}).Create(&row).Error
	})
	if err != nil {
		return false, apierr.Internalf(err, "consume nonce")
	}
	return accepted, nil
}
