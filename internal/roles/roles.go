// Package roles is the RoleStore (§4.3, C4): admin and moderator sets with
// admin-gated mutation.
package roles

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/blackyblack/identity-server/internal/apierr"
)

// Store holds the admin and moderator sets. Each set is a concurrent set
// (xsync.MapOf keyed by the base58 identity, value unused) so that a
// membership read never blocks on a concurrent mutation of an unrelated
// key, while a mutation of the set itself is still linearizable against
// concurrent reads of that same set.
type Store struct {
	admins     *xsync.MapOf[string, struct{}]
	moderators *xsync.MapOf[string, struct{}]
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		admins:     xsync.NewMapOf[string, struct{}](),
		moderators: xsync.NewMapOf[string, struct{}](),
	}
}

// IsAdmin reports whether u is currently in the admin set.
func (s *Store) IsAdmin(u string) bool {
	_, ok := s.admins.Load(u)
	return ok
}

// IsModerator reports whether u is currently in the moderator set.
func (s *Store) IsModerator(u string) bool {
	_, ok := s.moderators.Load(u)
	return ok
}

// ListAdmins returns the admin set as a sorted slice for a deterministic
// response body.
func (s *Store) ListAdmins() []string { return sortedKeys(s.admins) }

// ListModerators returns the moderator set as a sorted slice.
func (s *Store) ListModerators() []string { return sortedKeys(s.moderators) }

// AddAdmin adds u to the admin set. caller must already be an admin,
// unless bootstrap is true (genesis/config loads bypass authorization).
func (s *Store) AddAdmin(caller, u string, bootstrap bool) error {
	if !bootstrap && !s.IsAdmin(caller) {
		return apierr.NotAllowedf("%s is not an admin", caller)
	}
	s.admins.Store(u, struct{}{})
	return nil
}

// RemoveAdmin removes u from the admin set, including u == caller —
// admins may remove themselves, and the admin set may become empty; both
// are explicitly allowed (see SPEC_FULL.md §9).
func (s *Store) RemoveAdmin(caller, u string, bootstrap bool) error {
	if !bootstrap && !s.IsAdmin(caller) {
		return apierr.NotAllowedf("%s is not an admin", caller)
	}
	s.admins.Delete(u)
	return nil
}

// AddModerator adds u to the moderator set. Moderators are managed by
// admins, so caller must be an admin unless bootstrap is true.
func (s *Store) AddModerator(caller, u string, bootstrap bool) error {
	if !bootstrap && !s.IsAdmin(caller) {
		return apierr.NotAllowedf("%s is not an admin", caller)
	}
	s.moderators.Store(u, struct{}{})
	return nil
}

// RemoveModerator removes u from the moderator set.
func (s *Store) RemoveModerator(caller, u string, bootstrap bool) error {
	if !bootstrap && !s.IsAdmin(caller) {
		return apierr.NotAllowedf("%s is not an admin", caller)
	}
	s.moderators.Delete(u)
	return nil
}

func sortedKeys(m *xsync.MapOf[string, struct{}]) []string {
	out := make([]string, 0, m.Size())
	m.Range(func(k string, _ struct{}) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}
