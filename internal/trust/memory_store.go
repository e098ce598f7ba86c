package trust

import "sync"

// MemoryStore is the in-process TrustStore, guarded the way the rest of
// the pack guards process-wide registries: a single RWMutex over a
// handful of maps, no per-key striping. Vouches and penalties keep an
// insertion-ordered index slice alongside their lookup map so that
// IncomingVouches/PenaltiesOf return results in the order records were
// first written, which the engine's top-5 tie-break depends on.
type MemoryStore struct {
	mu sync.RWMutex

	vouches      map[vouchKey]*Vouch
	vouchOrder   []vouchKey
	proofs       map[string]Proof
	penalties    map[string]*Penalty // keyed by proofID
	penaltyOrder []string
}

type vouchKey struct {
	voucher string
	vouchee string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vouches:   make(map[vouchKey]*Vouch),
		proofs:    make(map[string]Proof),
		penalties: make(map[string]*Penalty),
	}
}

func (s *MemoryStore) InsertVouch(voucher, vouchee string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := vouchKey{voucher: voucher, vouchee: vouchee}
	if v, exists := s.vouches[k]; exists {
		v.Timestamp = ts
		return nil
	}
	s.vouches[k] = &Vouch{Voucher: voucher, Vouchee: vouchee, Timestamp: ts}
	s.vouchOrder = append(s.vouchOrder, k)
	return nil
}

func (s *MemoryStore) IncomingVouches(u string) ([]Vouch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Vouch
	for _, k := range s.vouchOrder {
		if k.vouchee == u {
			out = append(out, *s.vouches[k])
		}
	}
	return out, nil
}

func (s *MemoryStore) OutgoingVouches(u string) ([]Vouch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Vouch
	for _, k := range s.vouchOrder {
		if k.voucher == u {
			out = append(out, *s.vouches[k])
		}
	}
	return out, nil
}

func (s *MemoryStore) GetProof(u string) (Proof, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proofs[u]
	return p, ok, nil
}

func (s *MemoryStore) SetProof(u string, balance, ts int64, proofID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proofs[u] = Proof{User: u, Balance: balance, Timestamp: ts, ProofID: proofID}
	return nil
}

func (s *MemoryStore) PenaltiesOf(u string) ([]Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Penalty
	for _, id := range s.penaltyOrder {
		p := s.penalties[id]
		if p.Target == u {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertPenalty(proofID, target, moderator string, balance, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.penalties[proofID]; exists {
		p.Target = target
		p.Moderator = moderator
		p.Balance = balance
		p.Timestamp = ts
		return nil
	}
	s.penalties[proofID] = &Penalty{ProofID: proofID, Target: target, Moderator: moderator, Balance: balance, Timestamp: ts}
	s.penaltyOrder = append(s.penaltyOrder, proofID)
	return nil
}
