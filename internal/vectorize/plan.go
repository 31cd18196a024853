// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// Plan is the accumulated set of vector packs chosen to replace a block's
// scalar instructions, plus a running total cost. Every method takes the
// plan's mutex, so a Plan may be shared between goroutines; mutation goes
// through Add/Remove so the covered-instruction bookkeeping and total cost
// never drift apart.
type Plan struct {
	mu deadlock.Mutex

	ctx   *VectorPackContext
	packs []*VectorPack

	covered Bitset // positions already claimed by a pack in this plan
	cost    float64
}

// NewPlan starts an empty plan over ctx's block.
func NewPlan(ctx *VectorPackContext) *Plan {
	return &Plan{
		ctx:     ctx,
		covered: NewBitset(len(ctx.index.Instructions())),
	}
}

// Packs returns a snapshot of the plan's chosen packs.
func (p *Plan) Packs() []*VectorPack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*VectorPack, len(p.packs))
	copy(out, p.packs)
	return out
}

// Cost returns the plan's running total cost.
func (p *Plan) Cost() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cost
}

// CanAdd reports whether pack's elements are disjoint from every
// already-covered position - the invariant a Plan must hold at all times.
func (p *Plan) CanAdd(pack *VectorPack) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pack.Elements.Disjoint(p.covered)
}

// Add inserts pack into the plan, claiming its elements and charging its
// cost. Returns false without modifying the plan if pack overlaps an
// already-covered instruction.
func (p *Plan) Add(pack *VectorPack) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !pack.Elements.Disjoint(p.covered) {
		return false
	}
	p.packs = append(p.packs, pack)
	p.covered = p.covered.Union(pack.Elements)
	p.cost += pack.Cost
	return true
}

// Remove drops pack from the plan, freeing its covered positions and
// refunding its cost. It is a no-op if pack is not in the plan.
func (p *Plan) Remove(pack *VectorPack) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := -1
	for i, existing := range p.packs {
		if existing == pack {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	p.packs = append(p.packs[:idx], p.packs[idx+1:]...)
	p.cost -= pack.Cost

	newCovered := NewBitset(len(p.ctx.index.Instructions()))
	for _, remaining := range p.packs {
		newCovered = newCovered.Union(remaining.Elements)
	}
	p.covered = newCovered
	return true
}

// VerifyCost recomputes the plan's cost from scratch by summing every
// chosen pack's own cost, as a consistency check against the incrementally
// maintained total - the two must always agree.
func (p *Plan) VerifyCost() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total float64
	for _, pack := range p.packs {
		total += pack.Cost
	}
	return total
}

// Clone returns an independent copy of the plan, safe to mutate without
// affecting the receiver - used when exploring alternative extensions from
// a shared baseline.
func (p *Plan) Clone() *Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Plan{
		ctx:     p.ctx,
		packs:   append([]*VectorPack(nil), p.packs...),
		covered: p.covered,
		cost:    p.cost,
	}
}

// runBottomUpFromOperand greedily extends plan by repeatedly trying to add
// the cheapest matching pack that produces op, recursing into op's own
// unresolved operand packs first so producers are added before consumers.
// It is the worklist primitive RunBottomUp uses to grow a plan around each
// seed (spec 4.8).
func runBottomUpFromOperand(ctx *VectorPackContext, h *Heuristic, plan *Plan, op *OperandPack, visited map[*OperandPack]bool) {
	if visited[op] {
		return
	}
	visited[op] = true

	if op.IsSplat() {
		return
	}

	var best *VectorPack
	for _, vp := range ctx.AllPacks() {
		if !sameSequence(vp.OrderedValues, op.Values) {
			continue
		}
		if !plan.CanAdd(vp) {
			continue
		}
		if best == nil || vp.Cost < best.Cost {
			best = vp
		}
	}
	if best == nil {
		return
	}
	for _, operand := range best.OperandPacks {
		runBottomUpFromOperand(ctx, h, plan, operand, visited)
	}
	plan.Add(best)
}

// RunBottomUp improves start (or, if nil, an empty plan) via the local
// search of spec 4.8: seed every maximal store chain already interned in
// ctx, build a candidate plan around each seed with runBottomUpFromOperand,
// and keep it when it strictly lowers cost. It then considers odd/even
// splits of each kept pack's operand packs and concatenations of pairs of
// kept packs, iterating until no move improves the plan further.
func RunBottomUp(ctx *VectorPackContext, start *Plan) *Plan {
	h := NewHeuristic(ctx)
	plan := start
	if plan == nil {
		plan = NewPlan(ctx)
	}

	for improved := true; improved; {
		improved = false

		for _, seed := range storeChainSeeds(ctx) {
			if candidate := planWithSeed(ctx, h, plan, seed); candidate != nil && candidate.Cost() < plan.Cost() {
				plan = candidate
				improved = true
			}
		}
		for _, candidate := range oddEvenSplits(ctx, h, plan) {
			if candidate.Cost() < plan.Cost() {
				plan = candidate
				improved = true
			}
		}
		for _, candidate := range packConcatenations(ctx, plan) {
			if candidate.Cost() < plan.Cost() {
				plan = candidate
				improved = true
			}
		}
	}
	return plan
}

// storeChainSeeds returns every store-kind pack ctx has interned, the
// candidate seeds of spec 4.8 - which packer.go's seedLoadStorePacks
// enumerates at every width from 2 to MaxNumLanes.
func storeChainSeeds(ctx *VectorPackContext) []*VectorPack {
	var out []*VectorPack
	for _, vp := range ctx.AllPacks() {
		if vp.Kind == PackStore {
			out = append(out, vp)
		}
	}
	return out
}

// planWithSeed builds a candidate plan by removing any pack that currently
// produces one of seed's elements, adding seed, and running
// runBottomUpFromOperand over seed's own operand packs so their producers
// get filled in too. Returns nil if seed can't be added once the
// conflicting producers are gone.
func planWithSeed(ctx *VectorPackContext, h *Heuristic, plan *Plan, seed *VectorPack) *Plan {
	candidate := plan.Clone()
	for _, existing := range candidate.Packs() {
		if !existing.Elements.Disjoint(seed.Elements) {
			candidate.Remove(existing)
		}
	}
	if !candidate.CanAdd(seed) {
		return nil
	}
	candidate.Add(seed)

	visited := make(map[*OperandPack]bool)
	for _, operand := range seed.OperandPacks {
		runBottomUpFromOperand(ctx, h, candidate, operand, visited)
	}
	return candidate
}

// oddEvenSplits tries replacing each kept pack's operand packs with their
// odd/even half-width decomposition, rebuilding producers for each half.
func oddEvenSplits(ctx *VectorPackContext, h *Heuristic, plan *Plan) []*Plan {
	var out []*Plan
	for _, pack := range plan.Packs() {
		for _, operand := range pack.OperandPacks {
			if operand.Len() < 2 {
				continue
			}
			candidate := plan.Clone()
			visited := make(map[*OperandPack]bool)
			runBottomUpFromOperand(ctx, h, candidate, ctx.Odd(operand), visited)
			runBottomUpFromOperand(ctx, h, candidate, ctx.Even(operand), visited)
			out = append(out, candidate)
		}
	}
	return out
}

// packConcatenations tries replacing any two kept packs of the same kind
// with a single already-interned pack covering the union of their elements,
// when one exists.
func packConcatenations(ctx *VectorPackContext, plan *Plan) []*Plan {
	var out []*Plan
	packs := plan.Packs()
	for i := 0; i < len(packs); i++ {
		for j := i + 1; j < len(packs); j++ {
			a, b := packs[i], packs[j]
			if a.Kind != b.Kind {
				continue
			}
			union := a.Elements.Union(b.Elements)
			for _, candidate := range ctx.AllPacks() {
				if candidate.Kind != a.Kind || !candidate.Elements.Equal(union) {
					continue
				}
				next := plan.Clone()
				next.Remove(a)
				next.Remove(b)
				if next.CanAdd(candidate) {
					next.Add(candidate)
					out = append(out, next)
				}
			}
		}
	}
	return out
}
