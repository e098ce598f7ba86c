package engine

import (
	"testing"

	"github.com/blackyblack/identity-server/internal/trust"
)

func newFixture() (*trust.MemoryStore, *Engine) {
	store := trust.NewMemoryStore()
	return store, New(store)
}

func TestBasicProof(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("A", 5, 1, "id1")
	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got != 5 {
		t.Errorf("idt(A) = %d, want 5", got)
	}

	_ = store.SetProof("A", 50, 2, "id1")
	got, err = e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got != 50 {
		t.Errorf("idt(A) = %d, want 50", got)
	}
}

func TestSingleLayerVouch(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("B", 50, 1, "id1")
	_ = store.InsertVouch("B", "A", 1)

	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got != 5 {
		t.Errorf("idt(A) = %d, want 5", got)
	}
}

func TestTwoLayerVouch(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("A", 10, 1, "id1")
	_ = store.SetProof("B", 10, 1, "id1")
	_ = store.SetProof("C", 500, 1, "id1")
	_ = store.InsertVouch("C", "B", 1)
	_ = store.InsertVouch("B", "A", 1)

	if got, err := e.IDT("B"); err != nil || got != 60 {
		t.Errorf("idt(B) = %d, err %v, want 60", got, err)
	}
	if got, err := e.IDT("A"); err != nil || got != 16 {
		t.Errorf("idt(A) = %d, err %v, want 16", got, err)
	}
}

func TestTopFiveSaturation(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("A", 10, 1, "id1")
	balances := []int64{10, 20, 30, 40, 50, 60}
	for i, b := range balances {
		voucher := string(rune('a' + i))
		_ = store.SetProof(voucher, b, 1, "id1")
		_ = store.InsertVouch(voucher, "A", 1)
	}

	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got != 30 {
		t.Errorf("idt(A) = %d, want 30", got)
	}
}

func TestCycle(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("A", 100, 1, "id1")
	_ = store.SetProof("B", 100, 1, "id1")
	_ = store.SetProof("C", 200, 1, "id1")
	_ = store.InsertVouch("B", "C", 1)
	_ = store.InsertVouch("C", "A", 1)
	_ = store.InsertVouch("A", "B", 1)

	cases := map[string]int64{"C": 211, "A": 121, "B": 112}
	for u, want := range cases {
		got, err := e.IDT(u)
		if err != nil {
			t.Fatalf("IDT(%s): %v", u, err)
		}
		if got != want {
			t.Errorf("idt(%s) = %d, want %d", u, got, want)
		}
	}

	// Repeating the same vouches (idempotent upsert) must leave balances
	// unchanged.
	_ = store.InsertVouch("B", "C", 2)
	_ = store.InsertVouch("C", "A", 2)
	_ = store.InsertVouch("A", "B", 2)
	for u, want := range cases {
		got, err := e.IDT(u)
		if err != nil {
			t.Fatalf("IDT(%s) after repeat: %v", u, err)
		}
		if got != want {
			t.Errorf("idt(%s) after repeat = %d, want %d", u, got, want)
		}
	}
}

func TestPunishWithPropagation(t *testing.T) {
	store, e := newFixture()

	_ = store.SetProof("A", 50000, 1, "id1")
	_ = store.InsertVouch("A", "B", 1)

	if got, err := e.IDT("B"); err != nil || got != 5000 {
		t.Fatalf("idt(B) = %d, err %v, want 5000", got, err)
	}

	_ = store.InsertPenalty("p1", "B", "moderator", 10000, 1)
	if got, err := e.IDT("B"); err != nil || got != 0 {
		t.Fatalf("idt(B) after p1 = %d, err %v, want 0", got, err)
	}

	_ = store.InsertPenalty("p3", "B", "moderator", 100000, 2)
	if got, err := e.IDT("B"); err != nil || got != 0 {
		t.Fatalf("idt(B) after p3 = %d, err %v, want 0", got, err)
	}

	_ = store.InsertPenalty("p4", "B", "moderator", 100000, 3)
	_ = store.InsertPenalty("p5", "B", "moderator", 100000, 4)

	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT(A): %v", err)
	}
	if got != 30000 {
		t.Errorf("idt(A) = %d, want 30000", got)
	}
}

func TestIDTNonNegativity(t *testing.T) {
	store, e := newFixture()
	_ = store.InsertPenalty("p1", "A", "moderator", 999999, 1)

	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got < 0 {
		t.Errorf("idt(A) = %d, want >= 0", got)
	}
}

func TestSelfVouchNeutrality(t *testing.T) {
	store, e := newFixture()
	_ = store.SetProof("A", 100, 1, "id1")
	before, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT before: %v", err)
	}

	_ = store.InsertVouch("A", "A", 1)
	after, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT after: %v", err)
	}
	if before != after {
		t.Errorf("self-vouch changed idt(A): before=%d after=%d", before, after)
	}
}

func TestMonotoneUpperBoundFromProofsAlone(t *testing.T) {
	store, e := newFixture()
	_ = store.SetProof("A", 42, 1, "id1")

	got, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT: %v", err)
	}
	if got != 42 {
		t.Errorf("idt(A) = %d, want exactly balance_by_proof = 42", got)
	}
}

func TestTopFiveCapUnaffectedBySixthLowerVoucher(t *testing.T) {
	store, e := newFixture()
	_ = store.SetProof("A", 0, 1, "id1")
	for i, b := range []int64{60, 50, 40, 30, 20} {
		voucher := string(rune('a' + i))
		_ = store.SetProof(voucher, b, 1, "id1")
		_ = store.InsertVouch(voucher, "A", 1)
	}
	before, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT before: %v", err)
	}

	_ = store.SetProof("f", 10, 1, "id1")
	_ = store.InsertVouch("f", "A", 1)
	after, err := e.IDT("A")
	if err != nil {
		t.Fatalf("IDT after: %v", err)
	}
	if before != after {
		t.Errorf("adding a lower-ranked 6th voucher changed idt(A): before=%d after=%d", before, after)
	}
}

func TestClampOnVoucheePenalty(t *testing.T) {
	store, e := newFixture()
	_ = store.SetProof("A", 1000000, 1, "id1")
	_ = store.InsertVouch("A", "B", 1)
	_ = store.InsertPenalty("p1", "B", "moderator", 10000000, 1)

	penA, err := e.Penalty("A")
	if err != nil {
		t.Fatalf("Penalty(A): %v", err)
	}
	wantMax := int64(float64(MaxVoucheePenalty) * PenaltyReduceByLevelCoefficient)
	if penA != wantMax {
		t.Errorf("penalty(A) = %d, want the clamp %d", penA, wantMax)
	}
}
