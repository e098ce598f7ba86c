package nonce

// Store is the persistence contract behind Registry. Registry contains all
// of the monotonicity policy (§4.2); a Store only needs to remember, for a
// given (namespace, signer) pair, the single largest nonce ever accepted,
// and offer an atomic compare-and-set on it.
type Store interface {
	// LoadMax returns the currently stored nonce for (ns, signerPK), or
	// ok=false if no record exists yet.
	LoadMax(ns Namespace, signerPK []byte) (value int64, ok bool, err error)

	// TrySet atomically stores requested as the new max iff requested is
	// strictly greater than the current value (or no record exists).
	// accepted is false if the compare-and-set was rejected.
	TrySet(ns Namespace, signerPK []byte, requested int64) (accepted bool, err error)
}

// MemoryStore is the default in-process Store, backed by a lock-striped
// concurrent map so TrySet needs no registry-wide mutex.
type MemoryStore struct {
	stored *concurrentMap
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stored: newConcurrentMap()}
}

func (m *MemoryStore) LoadMax(ns Namespace, signerPK []byte) (int64, bool, error) {
	k, err := key(ns, signerPK)
	if err != nil {
		return 0, false, err
	}
	v, ok := m.stored.load(k)
	return v, ok, nil
}

func (m *MemoryStore) TrySet(ns Namespace, signerPK []byte, requested int64) (bool, error) {
	k, err := key(ns, signerPK)
	if err != nil {
		return false, err
	}
	return m.stored.compareAndSet(k, requested), nil
}
