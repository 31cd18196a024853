// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// PartialPack is a vector pack under construction: some lanes are already
// pinned to a concrete instruction, others are still open. UCT expansion
// builds these up one lane at a time from the templates registered on the
// VectorPackContext rather than committing to a full-width VectorPack
// immediately, so a dead end in lane k+1 doesn't throw away the work done
// pinning lanes 0..k.
//
// PartialPack is immutable; WithLane and WithMatch return a new value with
// its own copy of the lane and match slices.
type PartialPack struct {
	Kind    PackKind
	Binding *InstBinding // set for PackGeneral; nil otherwise

	lanes   []ir.Instruction // nil entry: lane not yet assigned
	matches []Match          // parallel to lanes, for PackGeneral
}

// NewPartialPack starts an empty pack of the given width.
func NewPartialPack(kind PackKind, width int) *PartialPack {
	return &PartialPack{
		Kind:  kind,
		lanes: make([]ir.Instruction, width),
	}
}

// NewPartialGeneralPack starts an empty PackGeneral pack bound to binding,
// whose Arity fixes the width.
func NewPartialGeneralPack(binding *InstBinding) *PartialPack {
	return &PartialPack{
		Kind:    PackGeneral,
		Binding: binding,
		lanes:   make([]ir.Instruction, binding.Arity()),
		matches: make([]Match, binding.Arity()),
	}
}

// Width is the pack's fixed lane count.
func (pp *PartialPack) Width() int { return len(pp.lanes) }

// NumAssigned counts lanes already pinned to an instruction.
func (pp *PartialPack) NumAssigned() int {
	n := 0
	for _, l := range pp.lanes {
		if l != nil {
			n++
		}
	}
	return n
}

// IsComplete reports whether every lane has been assigned.
func (pp *PartialPack) IsComplete() bool { return pp.NumAssigned() == len(pp.lanes) }

// LaneAt returns the instruction pinned to lane i, or nil if still open.
func (pp *PartialPack) LaneAt(i int) ir.Instruction { return pp.lanes[i] }

// OpenLane returns the index of the first unassigned lane, or -1 if the
// pack is already complete.
func (pp *PartialPack) OpenLane() int {
	for i, l := range pp.lanes {
		if l == nil {
			return i
		}
	}
	return -1
}

// WithLane returns a copy of pp with lane i pinned to inst.
func (pp *PartialPack) WithLane(i int, inst ir.Instruction) *PartialPack {
	next := &PartialPack{
		Kind:    pp.Kind,
		Binding: pp.Binding,
		lanes:   append([]ir.Instruction(nil), pp.lanes...),
	}
	next.lanes[i] = inst
	if pp.matches != nil {
		next.matches = append([]Match(nil), pp.matches...)
	}
	return next
}

// WithMatch returns a copy of pp with lane i pinned to m's output
// instruction and m itself recorded, for PackGeneral construction.
func (pp *PartialPack) WithMatch(i int, m Match) *PartialPack {
	next := pp.WithLane(i, m.Output.DefInst)
	if next.matches == nil {
		next.matches = make([]Match, len(next.lanes))
	}
	next.matches[i] = m
	return next
}

// Finalize turns a complete PartialPack into an interned VectorPack via ctx,
// computing elements/depended from the union of the lanes' positions and
// their dependence sets. Returns false if the pack is not yet complete.
func (pp *PartialPack) Finalize(ctx *VectorPackContext, lda *LocalDependenceAnalysis) (*VectorPack, bool) {
	if !pp.IsComplete() {
		return nil, false
	}

	insts := append([]ir.Instruction(nil), pp.lanes...)
	elements := bitsetFromInsts(ctx.index, insts)
	depended := NewBitset(ctx.index.Len())
	if lda != nil {
		for _, inst := range insts {
			pos, ok := ctx.index.InstructionPosition(inst)
			if !ok {
				continue
			}
			depended = depended.Union(lda.Depended(pos))
		}
		depended = depended.Difference(elements)
	}

	switch pp.Kind {
	case PackLoad:
		loads := make([]*ir.LoadInstruction, len(insts))
		for i, inst := range insts {
			loads[i] = inst.(*ir.LoadInstruction)
		}
		vp := ctx.CreateLoadPack(loads, elements, depended)
		return vp, vp != nil
	case PackStore:
		stores := make([]*ir.StoreInstruction, len(insts))
		for i, inst := range insts {
			stores[i] = inst.(*ir.StoreInstruction)
		}
		vp := ctx.CreateStorePack(stores, elements, depended)
		return vp, vp != nil
	case PackPhi:
		phis := make([]*ir.PhiInstruction, len(insts))
		for i, inst := range insts {
			phis[i] = inst.(*ir.PhiInstruction)
		}
		vp := ctx.CreatePhiPack(phis)
		return vp, vp != nil
	case PackGeneral:
		vp := ctx.CreateVectorPack(pp.matches, elements, depended, pp.Binding)
		return vp, vp != nil
	default:
		return nil, false
	}
}
