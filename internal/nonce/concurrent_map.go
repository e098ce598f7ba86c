package nonce

import "github.com/puzpuzpuz/xsync/v3"

// concurrentMap is a thin wrapper around xsync.MapOf so MemoryStore reads
// like ordinary map access while getting lock-striped compare-and-set for
// free.
type concurrentMap struct {
	m *xsync.MapOf[string, int64]
}

func newConcurrentMap() *concurrentMap {
	return &concurrentMap{m: xsync.NewMapOf[string, int64]()}
}

func (c *concurrentMap) load(k string) (int64, bool) {
	return c.m.Load(k)
}

// compareAndSet stores requested iff requested is strictly greater than
// the value already stored (or nothing is stored yet).
func (c *concurrentMap) compareAndSet(k string, requested int64) bool {
	accepted := true
	c.m.Compute(k, func(oldValue int64, loaded bool) (int64, bool) {
		if loaded && oldValue >= requested {
			accepted = false
			return oldValue, false
		}
		return requested, false
	})
	return accepted
}
