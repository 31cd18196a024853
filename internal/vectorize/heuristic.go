// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// Heuristic is the memoized bottom-up cost estimator used both as the
// rollout default policy and as a fast pre-pass that seeds the search with a
// plan before any MCTS simulation runs. It never mutates a Frontier; it only
// asks "if I had to materialize this OperandPack from scratch, right now,
// what would it cost" and caches the answer by interned pointer, since
// OperandPacks are canonicalized and identical packs are reached repeatedly
// during search.
type Heuristic struct {
	ctx    *VectorPackContext
	memo   map[*OperandPack]float64
	onPath map[*OperandPack]bool // cycle guard for pathological phi-only packs
}

// NewHeuristic builds a heuristic bound to ctx's pack context (and therefore
// its cost model and value index).
func NewHeuristic(ctx *VectorPackContext) *Heuristic {
	return &Heuristic{
		ctx:    ctx,
		memo:   make(map[*OperandPack]float64),
		onPath: make(map[*OperandPack]bool),
	}
}

// Solve returns the estimated cost of producing op as a vector register,
// memoized across calls. It returns the cheapest of: materializing each
// lane as a scalar and inserting it; a broadcast, when op is a splat;
// deduplication, when op repeats values, to a smaller pack plus a permute;
// and every interned VectorPack overlapping op's lanes (cost of the pack
// plus the recursive cost of its own operand packs).
func (h *Heuristic) Solve(op *OperandPack) float64 {
	if cost, ok := h.memo[op]; ok {
		return cost
	}
	if h.onPath[op] {
		// A cycle can only occur through a phi pack's own edges; treat it as
		// free since the loop-carried value is assumed already available.
		return 0
	}
	h.onPath[op] = true
	cost := h.solveUncached(op)
	delete(h.onPath, op)
	h.memo[op] = cost
	return cost
}

// solveUncached computes the true minimum over every way this package knows
// to produce op (spec 4.7): the scalar-gather baseline, a splat, every
// dedup-producer, and every candidate pack from ctx.AllPacks() that
// intersects op's lanes - exactly or partially. Candidates are compared, not
// short-circuited, so the result is never higher than the true minimum.
func (h *Heuristic) solveUncached(op *OperandPack) float64 {
	best := h.baselineCost(op)

	if cost, ok := h.splatCost(op); ok && cost < best {
		best = cost
	}

	if deduped := h.ctx.Dedup(op); deduped.Len() < op.Len() {
		if cost := h.Solve(deduped) + h.ctx.cost.ShuffleCost(ShufflePermute, op.VectorType(), 0); cost < best {
			best = cost
		}
	}

	for _, vp := range h.ctx.AllPacks() {
		if cost, ok := h.candidatePackCost(op, vp); ok && cost < best {
			best = cost
		}
	}

	return best
}

// baselineCost gathers every lane independently: each distinct value's
// scalar cost, paid once, plus one insert per occupied lane.
func (h *Heuristic) baselineCost(op *OperandPack) float64 {
	seen := make(map[*ir.Value]bool)
	var total float64
	for lane, v := range op.Values {
		if v == nil {
			continue
		}
		if !seen[v] {
			seen[v] = true
			total += h.scalarCostOf(v)
		}
		total += h.ctx.cost.VectorInstrCost(VectorInsert, op.VectorType(), lane)
	}
	return total
}

// splatCost prices op as a single scalar broadcast to every lane; only
// meaningful when op actually is a splat.
func (h *Heuristic) splatCost(op *OperandPack) (float64, bool) {
	if !op.IsSplat() {
		return 0, false
	}
	var v *ir.Value
	for _, val := range op.Values {
		if val != nil {
			v = val
			break
		}
	}
	return h.scalarCostOf(v) + h.ctx.cost.ShuffleCost(ShuffleBroadcast, op.VectorType(), 0), true
}

// candidatePackCost prices producing op from an already-interned VectorPack
// that shares at least one value with op: an exact permutation of op's own
// lanes costs the pack plus its operands plus a permute; a partial overlap
// prices the covered fraction of the pack plus a general shuffle, on top of
// the remaining lanes still having to be gathered by the caller's own
// comparison against the baseline.
func (h *Heuristic) candidatePackCost(op *OperandPack, vp *VectorPack) (float64, bool) {
	overlap, total := overlapCount(vp.OrderedValues, op.Values)
	if overlap == 0 {
		return 0, false
	}

	cost := vp.Cost
	for _, operand := range vp.OperandPacks {
		cost += h.Solve(operand)
	}

	if overlap == total && sameMultiset(vp.OrderedValues, op.Values) {
		return cost + h.ctx.cost.ShuffleCost(ShufflePermute, op.VectorType(), 0), true
	}

	frac := float64(overlap) / float64(total)
	return cost*frac + h.ctx.cost.ShuffleCost(ShuffleGeneral, op.VectorType(), 0), true
}

// overlapCount counts how many of op's non-nil lane values also appear
// somewhere in vpValues; total is op's non-nil lane count.
func overlapCount(vpValues, opValues []*ir.Value) (overlap, total int) {
	present := make(map[*ir.Value]bool, len(vpValues))
	for _, v := range vpValues {
		if v != nil {
			present[v] = true
		}
	}
	for _, v := range opValues {
		if v == nil {
			continue
		}
		total++
		if present[v] {
			overlap++
		}
	}
	return overlap, total
}

// sameMultiset reports whether a and b contain exactly the same non-nil
// values, regardless of order or lane count.
func sameMultiset(a, b []*ir.Value) bool {
	count := make(map[*ir.Value]int)
	for _, v := range a {
		if v != nil {
			count[v]++
		}
	}
	for _, v := range b {
		if v != nil {
			count[v]--
		}
	}
	for _, c := range count {
		if c != 0 {
			return false
		}
	}
	return true
}

func (h *Heuristic) scalarCostOf(v *ir.Value) float64 {
	if v == nil || v.DefInst == nil {
		return 0
	}
	return h.ctx.cost.ScalarCost(v.DefInst)
}
