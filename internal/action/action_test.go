package action

import (
	"testing"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/blackyblack/identity-server/internal/apierr"
	"github.com/blackyblack/identity-server/internal/codec"
	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/idcrypto"
	"github.com/blackyblack/identity-server/internal/nonce"
	"github.com/blackyblack/identity-server/internal/roles"
	"github.com/blackyblack/identity-server/internal/trust"
)

type fixture struct {
	svc    *Service
	roles  *roles.Store
	priv   map[string]ed25519.PrivateKey
	pub    map[string]string // name -> base58
}

func newTestFixture(t *testing.T) *fixture {
	t.Helper()
	store := trust.NewMemoryStore()
	roleStore := roles.NewStore()
	eng := engine.New(store)
	svc := New(nonce.NewRegistry(nonce.NewMemoryStore()), roleStore, store, eng, nil)

	f := &fixture{svc: svc, roles: roleStore, priv: map[string]ed25519.PrivateKey{}, pub: map[string]string{}}
	for _, name := range []string{"alice", "bob", "mod", "admin", "mallory"} {
		pub, priv, err := idcrypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		f.priv[name] = priv
		f.pub[name] = codec.EncodePublicKey(pub)
	}
	_ = roleStore.AddAdmin("", f.pub["admin"], true)
	_ = roleStore.AddModerator("", f.pub["mod"], true)
	return f
}

func (f *fixture) sign(name string, msg []byte) string {
	return codec.EncodeSignature(idcrypto.Sign(f.priv[name], msg))
}

func (f *fixture) vouchReq(signerName, user string, n int64) VouchRequest {
	msg := codec.CanonicalMessage(codec.ActionVouch, user, n, 0, "")
	return VouchRequest{User: user, Signer: f.pub[signerName], Signature: f.sign(signerName, msg), Nonce: n}
}

func TestVouchReplayResistance(t *testing.T) {
	f := newTestFixture(t)
	req := f.vouchReq("alice", f.pub["bob"], 1)

	if _, err := f.svc.Vouch(req); err != nil {
		t.Fatalf("first vouch: %v", err)
	}
	if _, err := f.svc.Vouch(req); apierr.As(err) != apierr.NonceConsumed {
		t.Fatalf("expected NonceConsumed on exact replay, got %v", err)
	}

	lower := f.vouchReq("alice", f.pub["bob"], 0)
	if _, err := f.svc.Vouch(lower); apierr.As(err) != apierr.NonceConsumed {
		t.Fatalf("expected NonceConsumed for n'<=n, got %v", err)
	}
}

func TestSignatureBindingToEveryField(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	user := f.pub["bob"]
	msg := codec.CanonicalMessage(codec.ActionVouch, user, n, 0, "")
	sig := f.sign("alice", msg)

	// Tampered user.
	req := VouchRequest{User: f.pub["mallory"], Signer: f.pub["alice"], Signature: sig, Nonce: n}
	if _, err := f.svc.Vouch(req); apierr.As(err) != apierr.BadSignature {
		t.Errorf("tampered user: expected BadSignature, got %v", err)
	}

	// Tampered nonce.
	req = VouchRequest{User: user, Signer: f.pub["alice"], Signature: sig, Nonce: n + 1}
	if _, err := f.svc.Vouch(req); apierr.As(err) != apierr.BadSignature {
		t.Errorf("tampered nonce: expected BadSignature, got %v", err)
	}

	// Tampered signer (claims a different identity than who actually signed).
	req = VouchRequest{User: user, Signer: f.pub["mallory"], Signature: sig, Nonce: n}
	if _, err := f.svc.Vouch(req); apierr.As(err) != apierr.BadSignature {
		t.Errorf("tampered signer: expected BadSignature, got %v", err)
	}
}

func TestSignatureBindingOnProofFields(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	user := f.pub["bob"]
	msg := codec.CanonicalMessage(codec.ActionProof, user, n, 10, "id1")
	sig := f.sign("mod", msg)

	// Tampered balance.
	req := ProofRequest{User: user, Signer: f.pub["mod"], Signature: sig, Nonce: n, Balance: 9999, ProofID: "id1"}
	if _, err := f.svc.Proof(req); apierr.As(err) != apierr.BadSignature {
		t.Errorf("tampered balance: expected BadSignature, got %v", err)
	}

	// Tampered proof_id.
	req = ProofRequest{User: user, Signer: f.pub["mod"], Signature: sig, Nonce: n, Balance: 10, ProofID: "other"}
	if _, err := f.svc.Proof(req); apierr.As(err) != apierr.BadSignature {
		t.Errorf("tampered proof_id: expected BadSignature, got %v", err)
	}
}

func TestProofAuthorizationRequiresModerator(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	user := f.pub["bob"]
	msg := codec.CanonicalMessage(codec.ActionProof, user, n, 10, "id1")
	req := ProofRequest{User: user, Signer: f.pub["alice"], Signature: f.sign("alice", msg), Nonce: n, Balance: 10, ProofID: "id1"}

	if _, err := f.svc.Proof(req); apierr.As(err) != apierr.NotAllowed {
		t.Fatalf("expected NotAllowed for a non-moderator, got %v", err)
	}
}

func TestProofRejectsBalanceAboveMax(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	user := f.pub["bob"]
	balance := int64(50001)
	msg := codec.CanonicalMessage(codec.ActionProof, user, n, balance, "id1")
	req := ProofRequest{User: user, Signer: f.pub["mod"], Signature: f.sign("mod", msg), Nonce: n, Balance: balance, ProofID: "id1"}

	if _, err := f.svc.Proof(req); apierr.As(err) != apierr.InvariantViolation {
		t.Fatalf("expected InvariantViolation, got %v", err)
	}
}

func TestPunishAuthorizationRequiresModerator(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	user := f.pub["bob"]
	msg := codec.CanonicalMessage(codec.ActionPunish, user, n, 100, "p1")
	req := PunishRequest{User: user, Signer: f.pub["alice"], Signature: f.sign("alice", msg), Nonce: n, Balance: 100, ProofID: "p1"}

	if _, err := f.svc.Punish(req); apierr.As(err) != apierr.NotAllowed {
		t.Fatalf("expected NotAllowed, got %v", err)
	}
}

func TestPunishSharesProofNonceNamespace(t *testing.T) {
	f := newTestFixture(t)
	user := f.pub["bob"]

	proofMsg := codec.CanonicalMessage(codec.ActionProof, user, 1, 10, "id1")
	proofReq := ProofRequest{User: user, Signer: f.pub["mod"], Signature: f.sign("mod", proofMsg), Nonce: 1, Balance: 10, ProofID: "id1"}
	if _, err := f.svc.Proof(proofReq); err != nil {
		t.Fatalf("proof: %v", err)
	}

	punishMsg := codec.CanonicalMessage(codec.ActionPunish, user, 1, 100, "p1")
	punishReq := PunishRequest{User: user, Signer: f.pub["mod"], Signature: f.sign("mod", punishMsg), Nonce: 1, Balance: 100, ProofID: "p1"}
	if _, err := f.svc.Punish(punishReq); apierr.As(err) != apierr.NonceConsumed {
		t.Fatalf("expected the proof-namespace nonce 1 to already be burned by the earlier proof, got %v", err)
	}
}

func TestModeratorMutationRequiresAdmin(t *testing.T) {
	f := newTestFixture(t)
	n := int64(1)
	target := f.pub["bob"]
	msg := codec.CanonicalMessage(codec.ActionModerators, target, n, 0, "")
	req := RoleRequest{User: target, Signer: f.pub["alice"], Signature: f.sign("alice", msg), Nonce: n}

	if _, err := f.svc.AddModerator(req); apierr.As(err) != apierr.NotAllowed {
		t.Fatalf("expected NotAllowed, got %v", err)
	}
}

func TestAdminCanAddModeratorAndRemoveSelf(t *testing.T) {
	f := newTestFixture(t)
	target := f.pub["bob"]

	addMsg := codec.CanonicalMessage(codec.ActionModerators, target, 1, 0, "")
	addReq := RoleRequest{User: target, Signer: f.pub["admin"], Signature: f.sign("admin", addMsg), Nonce: 1}
	if _, err := f.svc.AddModerator(addReq); err != nil {
		t.Fatalf("add moderator: %v", err)
	}
	if !f.roles.IsModerator(target) {
		t.Error("expected bob to be a moderator")
	}

	selfRemoveMsg := codec.CanonicalMessage(codec.ActionAdmins, f.pub["admin"], 1, 0, "")
	selfRemoveReq := RoleRequest{User: f.pub["admin"], Signer: f.pub["admin"], Signature: f.sign("admin", selfRemoveMsg), Nonce: 1}
	if _, err := f.svc.RemoveAdmin(selfRemoveReq); err != nil {
		t.Fatalf("admin self-removal: %v", err)
	}
	if f.roles.IsAdmin(f.pub["admin"]) {
		t.Error("expected admin to have removed itself")
	}
}

func TestVouchResultReflectsRecomputedIDT(t *testing.T) {
	f := newTestFixture(t)
	proofMsg := codec.CanonicalMessage(codec.ActionProof, f.pub["alice"], 1, 50, "id1")
	if _, err := f.svc.Proof(ProofRequest{User: f.pub["alice"], Signer: f.pub["mod"], Signature: f.sign("mod", proofMsg), Nonce: 1, Balance: 50, ProofID: "id1"}); err != nil {
		t.Fatalf("proof: %v", err)
	}

	req := f.vouchReq("alice", f.pub["bob"], 1)
	result, err := f.svc.Vouch(req)
	if err != nil {
		t.Fatalf("vouch: %v", err)
	}
	if result.IDT != 5 {
		t.Errorf("idt = %d, want 5", result.IDT)
	}
}
