package trust

import (
	"path/filepath"
	"testing"
)

// runStoreContract exercises the Store interface identically regardless
// of backend, so MemoryStore and SQLStore are checked against the same
// behavior.
func runStoreContract(t *testing.T, newStore func() Store) {
	t.Run("VouchUpsertByPair", func(t *testing.T) {
		s := newStore()
		if err := s.InsertVouch("a", "b", 1); err != nil {
			t.Fatalf("insert vouch: %v", err)
		}
		if err := s.InsertVouch("a", "b", 2); err != nil {
			t.Fatalf("re-insert vouch: %v", err)
		}
		in, err := s.IncomingVouches("b")
		if err != nil {
			t.Fatalf("incoming vouches: %v", err)
		}
		if len(in) != 1 {
			t.Fatalf("expected exactly one vouch after re-issue, got %d", len(in))
		}
		if in[0].Timestamp != 2 {
			t.Errorf("expected timestamp updated to 2, got %d", in[0].Timestamp)
		}
	})

	t.Run("IncomingOutgoingPreserveInsertionOrder", func(t *testing.T) {
		s := newStore()
		_ = s.InsertVouch("c1", "u", 1)
		_ = s.InsertVouch("c2", "u", 2)
		_ = s.InsertVouch("c3", "u", 3)

		in, err := s.IncomingVouches("u")
		if err != nil {
			t.Fatalf("incoming vouches: %v", err)
		}
		want := []string{"c1", "c2", "c3"}
		if len(in) != len(want) {
			t.Fatalf("got %d vouches, want %d", len(in), len(want))
		}
		for i, v := range in {
			if v.Voucher != want[i] {
				t.Errorf("position %d: got voucher %q, want %q", i, v.Voucher, want[i])
			}
		}

		_ = s.InsertVouch("u", "out1", 1)
		out, err := s.OutgoingVouches("u")
		if err != nil {
			t.Fatalf("outgoing vouches: %v", err)
		}
		if len(out) != 1 || out[0].Vouchee != "out1" {
			t.Errorf("unexpected outgoing vouches: %+v", out)
		}
	})

	t.Run("ProofUpsertByUser", func(t *testing.T) {
		s := newStore()
		if _, ok, _ := s.GetProof("nobody"); ok {
			t.Error("expected no proof for unknown user")
		}
		if err := s.SetProof("u", 10, 1, "id1"); err != nil {
			t.Fatalf("set proof: %v", err)
		}
		if err := s.SetProof("u", 20, 2, "id2"); err != nil {
			t.Fatalf("overwrite proof: %v", err)
		}
		p, ok, err := s.GetProof("u")
		if err != nil {
			t.Fatalf("get proof: %v", err)
		}
		if !ok {
			t.Fatal("expected a proof to exist")
		}
		if p.Balance != 20 || p.ProofID != "id2" {
			t.Errorf("expected the latest proof to win, got %+v", p)
		}
	})

	t.Run("PenaltyUpsertByProofID", func(t *testing.T) {
		s := newStore()
		if err := s.InsertPenalty("p1", "u", "mod", 100, 1); err != nil {
			t.Fatalf("insert penalty: %v", err)
		}
		if err := s.InsertPenalty("p2", "u", "mod", 50, 2); err != nil {
			t.Fatalf("insert second penalty: %v", err)
		}
		if err := s.InsertPenalty("p1", "u", "mod", 999, 3); err != nil {
			t.Fatalf("overwrite by proof id: %v", err)
		}

		penalties, err := s.PenaltiesOf("u")
		if err != nil {
			t.Fatalf("penalties of: %v", err)
		}
		if len(penalties) != 2 {
			t.Fatalf("expected 2 distinct penalty records, got %d: %+v", len(penalties), penalties)
		}
		var found bool
		for _, p := range penalties {
			if p.ProofID == "p1" {
				found = true
				if p.Balance != 999 {
					t.Errorf("expected overwritten penalty balance 999, got %d", p.Balance)
				}
			}
		}
		if !found {
			t.Error("expected penalty p1 to still be present after overwrite")
		}
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func() Store {
		return NewMemoryStore()
	})
}

func TestSQLStoreContract(t *testing.T) {
	dir := t.TempDir()
	n := 0
	runStoreContract(t, func() Store {
		n++
		path := filepath.Join(dir, "trust-"+string(rune('a'+n))+".db")
		s, err := OpenSQLStore(path)
		if err != nil {
			t.Fatalf("open sql store: %v", err)
		}
		return s
	})
}
