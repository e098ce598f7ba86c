package api

import (
	"net/http"

	"github.com/blackyblack/identity-server/internal/action"
	"github.com/blackyblack/identity-server/internal/obsv"
)

func (s *Server) handleVouch(w http.ResponseWriter, r *http.Request) {
	var wire requestWire
	if err := decodeBody(r, &wire); err != nil {
		s.writeError(w, r, "vouch", err)
		return
	}

	result, err := s.actions.Vouch(action.VouchRequest{
		User:      pathUser(r),
		Signer:    wire.Signer,
		Signature: wire.Signature,
		Nonce:     wire.Nonce,
	})
	if err != nil {
		s.writeError(w, r, "vouch", err)
		return
	}

	obsv.RecordAction("vouch", "ok")
	writeJSON(w, http.StatusOK, vouchResponse{From: result.From, To: result.To, IDT: result.IDT})
}

func (s *Server) handleIDT(w http.ResponseWriter, r *http.Request) {
	idt, err := s.queries.IDT(pathUser(r))
	if err != nil {
		s.writeError(w, r, "idt", err)
		return
	}
	writeJSON(w, http.StatusOK, idtResponse{IDT: idt})
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	var wire requestWire
	if err := decodeBody(r, &wire); err != nil {
		s.writeError(w, r, "proof", err)
		return
	}

	result, err := s.actions.Proof(action.ProofRequest{
		User:      pathUser(r),
		Signer:    wire.Signer,
		Signature: wire.Signature,
		Nonce:     wire.Nonce,
		Balance:   wire.IDT,
		ProofID:   wire.ProofID,
	})
	if err != nil {
		s.writeError(w, r, "proof", err)
		return
	}

	obsv.RecordAction("proof", "ok")
	writeJSON(w, http.StatusOK, proofResponse{From: result.From, To: result.To, IDT: result.IDT, ProofID: result.ProofID})
}

func (s *Server) handlePunish(w http.ResponseWriter, r *http.Request) {
	var wire requestWire
	if err := decodeBody(r, &wire); err != nil {
		s.writeError(w, r, "punish", err)
		return
	}

	result, err := s.actions.Punish(action.PunishRequest{
		User:      pathUser(r),
		Signer:    wire.Signer,
		Signature: wire.Signature,
		Nonce:     wire.Nonce,
		Balance:   wire.IDT,
		ProofID:   wire.ProofID,
	})
	if err != nil {
		s.writeError(w, r, "punish", err)
		return
	}

	obsv.RecordAction("punish", "ok")
	writeJSON(w, http.StatusOK, punishResponse{From: result.From, To: result.To, IDT: result.IDT, Penalty: result.Penalty})
}

func (s *Server) handleIsModerator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boolResponse{IsModerator: boolPtr(s.queries.IsModerator(pathUser(r)))})
}

func (s *Server) handleListModerators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.ListModerators())
}

func (s *Server) handleAddModerator(w http.ResponseWriter, r *http.Request) {
	s.handleRole(w, r, "add_moderator", s.actions.AddModerator, moderatorResponse)
}

func (s *Server) handleRemoveModerator(w http.ResponseWriter, r *http.Request) {
	s.handleRole(w, r, "remove_moderator", s.actions.RemoveModerator, moderatorResponse)
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boolResponse{IsAdmin: boolPtr(s.queries.IsAdmin(pathUser(r)))})
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.ListAdmins())
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	s.handleRole(w, r, "add_admin", s.actions.AddAdmin, adminResponse)
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	s.handleRole(w, r, "remove_admin", s.actions.RemoveAdmin, adminResponse)
}

func moderatorResponse(result action.RoleResult) interface{} {
	return moderatorRoleResponse{From: result.From, Moderator: result.Target}
}

func adminResponse(result action.RoleResult) interface{} {
	return adminRoleResponse{From: result.From, Admin: result.Target}
}

// handleRole is the shared body for the four role-mutation routes: decode,
// call the action, record the outcome, and encode with a caller-supplied
// response shaper (moderator vs. admin wire field names differ).
func (s *Server) handleRole(w http.ResponseWriter, r *http.Request, name string, act func(action.RoleRequest) (action.RoleResult, error), shape func(action.RoleResult) interface{}) {
	var wire requestWire
	if err := decodeBody(r, &wire); err != nil {
		s.writeError(w, r, name, err)
		return
	}

	result, err := act(action.RoleRequest{
		User:      pathUser(r),
		Signer:    wire.Signer,
		Signature: wire.Signature,
		Nonce:     wire.Nonce,
	})
	if err != nil {
		s.writeError(w, r, name, err)
		return
	}

	obsv.RecordAction(name, "ok")
	writeJSON(w, http.StatusOK, shape(result))
}
