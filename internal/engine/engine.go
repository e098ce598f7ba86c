// Package engine implements the TrustEngine (§4.5): the cycle-safe
// recursive evaluator for idt(u) and penalty(u) over a trust.Store
// snapshot.
package engine

import (
	"math"

	"golang.org/x/exp/slices"

	"github.com/blackyblack/identity-server/internal/trust"
)

const (
	TopVouchersSize                 = 5
	MaxIDTByProof                   = 50000
	MaxVoucheePenalty               = 4 * MaxIDTByProof
	IDTReduceByLevelCoefficient     = 0.10
	PenaltyReduceByLevelCoefficient = 0.10
	GenesisProofID                  = "0"
)

// Engine evaluates idt/penalty against a trust.Store snapshot. It holds
// no state of its own between calls; every top-level IDT/Penalty call
// starts a fresh visited set, per §4.5.1 — balances are not memoized or
// additive across entry points.
type Engine struct {
	store trust.Store
}

// New wraps store with the IDT/penalty evaluation rules.
func New(store trust.Store) *Engine {
	return &Engine{store: store}
}

// IDT computes idt(u) with a fresh visited set.
func (e *Engine) IDT(u string) (int64, error) {
	return e.idt(u, map[string]bool{})
}

// Penalty computes penalty(u) with a fresh visited set, independent of
// any IDT recursion in progress.
func (e *Engine) Penalty(u string) (int64, error) {
	return e.penalty(u, map[string]bool{})
}

func (e *Engine) idt(u string, visited map[string]bool) (int64, error) {
	if visited[u] {
		return 0, nil
	}
	visited[u] = true

	proof, ok, err := e.store.GetProof(u)
	if err != nil {
		return 0, err
	}
	var byProof int64
	if ok {
		byProof = proof.Balance
	}

	byVouchers, err := e.balanceByVouchers(u, visited)
	if err != nil {
		return 0, err
	}

	// penalty is a fresh, independent recursion — it must not share
	// visited with the idt walk in progress.
	pen, err := e.Penalty(u)
	if err != nil {
		return 0, err
	}

	total := byVouchers + byProof - pen
	if total < 0 {
		total = 0
	}
	return total, nil
}

type rankedVoucher struct {
	voucher string
	idt     int64
}

func (e *Engine) balanceByVouchers(u string, visited map[string]bool) (int64, error) {
	incoming, err := e.store.IncomingVouches(u)
	if err != nil {
		return 0, err
	}

	ranked := make([]rankedVoucher, 0, len(incoming))
	for _, v := range incoming {
		voucherIDT, err := e.idt(v.Voucher, visited)
		if err != nil {
			return 0, err
		}
		ranked = append(ranked, rankedVoucher{voucher: v.Voucher, idt: voucherIDT})
	}

	// Descending by computed idt; SortStableFunc preserves the store's
	// insertion order (incoming's order) among ties.
	slices.SortStableFunc(ranked, func(a, b rankedVoucher) int {
		switch {
		case a.idt > b.idt:
			return -1
		case a.idt < b.idt:
			return 1
		default:
			return 0
		}
	})

	if len(ranked) > TopVouchersSize {
		ranked = ranked[:TopVouchersSize]
	}

	var sum float64
	for _, r := range ranked {
		sum += float64(r.idt) * IDTReduceByLevelCoefficient
	}
	return int64(math.Floor(sum)), nil
}

func (e *Engine) penalty(u string, visited map[string]bool) (int64, error) {
	if visited[u] {
		return 0, nil
	}
	visited[u] = true

	direct, err := e.store.PenaltiesOf(u)
	if err != nil {
		return 0, err
	}
	var byProof int64
	for _, p := range direct {
		byProof += p.Balance
	}

	outgoing, err := e.store.OutgoingVouches(u)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, v := range outgoing {
		childPenalty, err := e.penalty(v.Vouchee, visited)
		if err != nil {
			return 0, err
		}
		if childPenalty > MaxVoucheePenalty {
			childPenalty = MaxVoucheePenalty
		}
		sum += float64(childPenalty) * PenaltyReduceByLevelCoefficient
	}
	byVouchees := int64(math.Floor(sum))

	return byProof + byVouchees, nil
}
