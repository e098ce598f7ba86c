// Package query implements the QueryService (§4.7, C8): unauthenticated
// reads over the engine and role store.
package query

import (
	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/roles"
)

// Service is the QueryService.
type Service struct {
	engine *engine.Engine
	roles  *roles.Store
}

// New wires a QueryService from its dependencies.
func New(eng *engine.Engine, roleStore *roles.Store) *Service {
	return &Service{engine: eng, roles: roleStore}
}

// IDT returns idt(u).
func (s *Service) IDT(u string) (int64, error) {
	return s.engine.IDT(u)
}

// Penalty returns penalty(u).
func (s *Service) Penalty(u string) (int64, error) {
	return s.engine.Penalty(u)
}

// IsAdmin reports whether u is in the admin set.
func (s *Service) IsAdmin(u string) bool {
	return s.roles.IsAdmin(u)
}

// IsModerator reports whether u is in the moderator set.
func (s *Service) IsModerator(u string) bool {
	return s.roles.IsModerator(u)
}

// ListAdmins returns the sorted admin set.
func (s *Service) ListAdmins() []string {
	return s.roles.ListAdmins()
}

// ListModerators returns the sorted moderator set.
func (s *Service) ListModerators() []string {
	return s.roles.ListModerators()
}
