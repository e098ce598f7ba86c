// Package action implements the ActionService (§4.6, C7): the
// verify -> authorize -> mutate -> recompute pipeline shared by every
// signed action (vouch, proof, punish, moderator/admin management).
package action

import (
	"time"

	"github.com/blackyblack/identity-server/internal/apierr"
	"github.com/blackyblack/identity-server/internal/codec"
	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/idcrypto"
	"github.com/blackyblack/identity-server/internal/nonce"
	"github.com/blackyblack/identity-server/internal/roles"
	"github.com/blackyblack/identity-server/internal/trust"
)

// Publisher receives best-effort notifications of freshly computed
// balances, e.g. to fan out over the live /ws/idt feed. A nil Publisher
// on Service disables publishing entirely.
type Publisher interface {
	PublishIDT(user string, idt int64)
}

// Service is the ActionService.
type Service struct {
	nonces *nonce.Registry
	roles  *roles.Store
	store  trust.Store
	engine *engine.Engine
	pub    Publisher

	// Now supplies the current Unix timestamp; overridable in tests.
	Now func() int64
}

// New wires an ActionService from its dependencies. pub may be nil.
func New(nonces *nonce.Registry, roleStore *roles.Store, store trust.Store, eng *engine.Engine, pub Publisher) *Service {
	return &Service{
		nonces: nonces,
		roles:  roleStore,
		store:  store,
		engine: eng,
		pub:    pub,
		Now:    func() int64 { return time.Now().Unix() },
	}
}

func (s *Service) publish(user string, idt int64) {
	if s.pub != nil {
		s.pub.PublishIDT(user, idt)
	}
}

// verify runs steps 1-4 shared by every action: decode the signer key and
// signature, confirm the nonce is not yet consumed, and check the
// signature against the canonical message. It does not consume the nonce
// or authorize the caller — those are action-specific (step 5 depends on
// role membership, step 6 happens only after step 5 passes).
func (s *Service) verify(ns nonce.Namespace, act codec.Action, user, signerB58, sigB64 string, nonceVal, balance int64, proofID string) (signerRaw []byte, err error) {
	signerRaw, err = codec.DecodePublicKey(signerB58)
	if err != nil {
		return nil, err
	}

	consumed, err := s.nonces.IsConsumed(ns, signerRaw, nonceVal)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, apierr.NonceConsumedf("nonce %d already consumed for signer %s in namespace %q", nonceVal, signerB58, ns)
	}

	sig, err := codec.DecodeSignature(sigB64)
	if err != nil {
		return nil, err
	}

	msg := codec.CanonicalMessage(act, user, nonceVal, balance, proofID)
	if err := idcrypto.Verify(signerRaw, msg, sig); err != nil {
		return nil, err
	}

	return signerRaw, nil
}

// VouchRequest carries the wire fields of a POST /vouch/{user} body.
type VouchRequest struct {
	User      string
	Signer    string
	Signature string
	Nonce     int64
}

// VouchResult is the response body for a successful vouch.
type VouchResult struct {
	From string
	To   string
	IDT  int64
}

// Vouch runs the full pipeline for the vouch action. Any identity may
// vouch for any other (including itself, which contributes zero to idt
// by construction — see the engine's cycle handling).
func (s *Service) Vouch(req VouchRequest) (VouchResult, error) {
	signerRaw, err := s.verify(nonce.Vouch, codec.ActionVouch, req.User, req.Signer, req.Signature, req.Nonce, 0, "")
	if err != nil {
		return VouchResult{}, err
	}

	if err := s.nonces.Consume(nonce.Vouch, signerRaw, req.Nonce); err != nil {
		return VouchResult{}, err
	}

	if err := s.store.InsertVouch(req.Signer, req.User, s.Now()); err != nil {
		return VouchResult{}, err
	}

	idt, err := s.engine.IDT(req.User)
	if err != nil {
		return VouchResult{}, err
	}
	s.publish(req.User, idt)

	return VouchResult{From: req.Signer, To: req.User, IDT: idt}, nil
}

// ProofRequest carries the wire fields of a POST /proof/{user} body.
type ProofRequest struct {
	User      string
	Signer    string
	Signature string
	Nonce     int64
	Balance   int64
	ProofID   string
}

// ProofResult is the response body for a successful proof.
type ProofResult struct {
	From    string
	To      string
	IDT     int64
	ProofID string
}

// Proof runs the pipeline for the proof action: only a moderator may set
// a proof balance, and it must lie in [0, engine.MaxIDTByProof] (the
// genesis bootstrap path bypasses this bound — see bootstrap.LoadGenesis).
func (s *Service) Proof(req ProofRequest) (ProofResult, error) {
	signerRaw, err := s.verify(nonce.Proof, codec.ActionProof, req.User, req.Signer, req.Signature, req.Nonce, req.Balance, req.ProofID)
	if err != nil {
		return ProofResult{}, err
	}

	if !s.roles.IsModerator(req.Signer) {
		return ProofResult{}, apierr.NotAllowedf("%s is not a moderator", req.Signer)
	}
	if req.Balance < 0 {
		return ProofResult{}, apierr.InvariantViolationf("proof balance %d is negative", req.Balance)
	}
	if req.Balance > engine.MaxIDTByProof {
		return ProofResult{}, apierr.InvariantViolationf("proof balance %d exceeds MAX_IDT_BY_PROOF %d", req.Balance, engine.MaxIDTByProof)
	}

	if err := s.nonces.Consume(nonce.Proof, signerRaw, req.Nonce); err != nil {
		return ProofResult{}, err
	}

	if err := s.store.SetProof(req.User, req.Balance, s.Now(), req.ProofID); err != nil {
		return ProofResult{}, err
	}

	idt, err := s.engine.IDT(req.User)
	if err != nil {
		return ProofResult{}, err
	}
	s.publish(req.User, idt)

	return ProofResult{From: req.Signer, To: req.User, IDT: idt, ProofID: req.ProofID}, nil
}

// PunishRequest carries the wire fields of a POST /punish/{user} body. It
// has the same shape as ProofRequest, but this deliberately preserves the
// upstream quirk (§9) of the request routing through the proof nonce
// namespace and the proof canonical message shape.
type PunishRequest struct {
	User      string
	Signer    string
	Signature string
	Nonce     int64
	Balance   int64
	ProofID   string
}

// PunishResult is the response body for a successful punish.
type PunishResult struct {
	From    string
	To      string
	IDT     int64
	Penalty int64
}

// Punish issues a penalty. Preserved quirk: this consumes a nonce from
// the Proof namespace and builds the canonical message using
// codec.ActionPunish, not codec.ActionProof — the message *tag* differs
// (so signatures cannot be replayed across the two actions) but the
// nonce *namespace* is shared, exactly as the source behaves.
func (s *Service) Punish(req PunishRequest) (PunishResult, error) {
	signerRaw, err := s.verify(nonce.Proof, codec.ActionPunish, req.User, req.Signer, req.Signature, req.Nonce, req.Balance, req.ProofID)
	if err != nil {
		return PunishResult{}, err
	}

	if !s.roles.IsModerator(req.Signer) {
		return PunishResult{}, apierr.NotAllowedf("%s is not a moderator", req.Signer)
	}

	if err := s.nonces.Consume(nonce.Proof, signerRaw, req.Nonce); err != nil {
		return PunishResult{}, err
	}

	if err := s.store.InsertPenalty(req.ProofID, req.User, req.Signer, req.Balance, s.Now()); err != nil {
		return PunishResult{}, err
	}

	idt, err := s.engine.IDT(req.User)
	if err != nil {
		return PunishResult{}, err
	}
	pen, err := s.engine.Penalty(req.User)
	if err != nil {
		return PunishResult{}, err
	}
	s.publish(req.User, idt)

	return PunishResult{From: req.Signer, To: req.User, IDT: idt, Penalty: pen}, nil
}

// RoleRequest carries the wire fields shared by the four role-mutation
// actions (add/remove moderator, add/remove admin).
type RoleRequest struct {
	User      string
	Signer    string
	Signature string
	Nonce     int64
}

// RoleResult is the response body for a successful role mutation.
type RoleResult struct {
	From   string
	Target string
}

// AddModerator authorizes and applies an admin-issued moderator grant.
func (s *Service) AddModerator(req RoleRequest) (RoleResult, error) {
	return s.mutateRole(nonce.Moderators, req, s.roles.AddModerator)
}

// RemoveModerator authorizes and applies an admin-issued moderator revoke.
func (s *Service) RemoveModerator(req RoleRequest) (RoleResult, error) {
	return s.mutateRole(nonce.Moderators, req, s.roles.RemoveModerator)
}

// AddAdmin authorizes and applies an admin-issued admin grant.
func (s *Service) AddAdmin(req RoleRequest) (RoleResult, error) {
	return s.mutateRole(nonce.Admins, req, s.roles.AddAdmin)
}

// RemoveAdmin authorizes and applies an admin-issued admin revoke,
// including self-removal, which is explicitly permitted (§9).
func (s *Service) RemoveAdmin(req RoleRequest) (RoleResult, error) {
	return s.mutateRole(nonce.Admins, req, s.roles.RemoveAdmin)
}

func (s *Service) mutateRole(ns nonce.Namespace, req RoleRequest, mutate func(caller, u string, bootstrap bool) error) (RoleResult, error) {
	act := codec.ActionModerators
	if ns == nonce.Admins {
		act = codec.ActionAdmins
	}

	signerRaw, err := s.verify(ns, act, req.User, req.Signer, req.Signature, req.Nonce, 0, "")
	if err != nil {
		return RoleResult{}, err
	}

	// Authorization (step 5) is checked here, ahead of nonce consumption,
	// so mutate is called with bootstrap=true below — it only re-checks
	// admin membership, which would otherwise duplicate this lookup.
	if !s.roles.IsAdmin(req.Signer) {
		return RoleResult{}, apierr.NotAllowedf("%s is not an admin", req.Signer)
	}

	if err := s.nonces.Consume(ns, signerRaw, req.Nonce); err != nil {
		return RoleResult{}, err
	}

	if err := mutate(req.Signer, req.User, true); err != nil {
		return RoleResult{}, err
	}

	return RoleResult{From: req.Signer, Target: req.User}, nil
}
