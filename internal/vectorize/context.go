// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// VectorPackContext is the canonicalizing factory for VectorPack and
// OperandPack instances inside one basic block. It is single-threaded by
// design (spec 5): packs are shared read-only after interning, but the
// context itself is never touched concurrently.
type VectorPackContext struct {
	index    *ValueIndex
	cost     CostModel
	operands map[string]*OperandPack
	allPacks []*VectorPack

	lda              *LocalDependenceAnalysis
	partialTemplates []*PartialTemplate
}

// NewVectorPackContext builds a context for one block, given its value index
// and the target cost model.
func NewVectorPackContext(index *ValueIndex, cost CostModel) *VectorPackContext {
	return &VectorPackContext{
		index:    index,
		cost:     cost,
		operands: make(map[string]*OperandPack),
	}
}

// SetDependenceAnalysis attaches the block's LDA, used by PartialPack
// expansion (uct.go) to check that a candidate lane filler stays pairwise
// independent of every lane already pinned.
func (ctx *VectorPackContext) SetDependenceAnalysis(lda *LocalDependenceAnalysis) {
	ctx.lda = lda
}

// PartialTemplate is a recipe for growing a new VectorPack one lane at a
// time during search, rather than only choosing among packs already fully
// enumerated at seed time (spec 4.9 step 2).
type PartialTemplate struct {
	Pack       *PartialPack // empty template: Kind/Binding/width set, no lanes assigned
	Candidates []Match      // every match eligible to fill some lane
}

// AddPartialTemplate registers t for use by MCTS expansion.
func (ctx *VectorPackContext) AddPartialTemplate(t *PartialTemplate) {
	ctx.partialTemplates = append(ctx.partialTemplates, t)
}

// PartialTemplates returns every template registered so far.
func (ctx *VectorPackContext) PartialTemplates() []*PartialTemplate {
	return ctx.partialTemplates
}

// GetCanonicalOperandPack interns vals, returning the same pointer for
// identical sequences across the life of this context.
func (ctx *VectorPackContext) GetCanonicalOperandPack(vals []*ir.Value) *OperandPack {
	candidate := &OperandPack{Values: append([]*ir.Value(nil), vals...)}
	key := candidate.key()
	if existing, ok := ctx.operands[key]; ok {
		return existing
	}
	candidate.seq = len(ctx.operands)
	ctx.operands[key] = candidate
	return candidate
}

// Dedup returns the operand pack containing only the distinct non-nil
// values of op, in first-occurrence order - used by the heuristic to check
// whether a smaller pack would serve the same purpose.
func (ctx *VectorPackContext) Dedup(op *OperandPack) *OperandPack {
	seen := make(map[*ir.Value]bool)
	var vals []*ir.Value
	for _, v := range op.Values {
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		vals = append(vals, v)
	}
	return ctx.GetCanonicalOperandPack(vals)
}

// Odd returns the operand pack of op's odd-indexed lanes (1, 3, 5, ...).
func (ctx *VectorPackContext) Odd(op *OperandPack) *OperandPack {
	var vals []*ir.Value
	for i := 1; i < len(op.Values); i += 2 {
		vals = append(vals, op.Values[i])
	}
	return ctx.GetCanonicalOperandPack(vals)
}

// Even returns the operand pack of op's even-indexed lanes (0, 2, 4, ...).
func (ctx *VectorPackContext) Even(op *OperandPack) *OperandPack {
	var vals []*ir.Value
	for i := 0; i < len(op.Values); i += 2 {
		vals = append(vals, op.Values[i])
	}
	return ctx.GetCanonicalOperandPack(vals)
}

// bitsetFromInsts builds a bitset over instruction positions (not value IDs)
// - the indexing scheme every Frontier/Plan bitset in this package uses, so
// that void instructions like stores get a bit too.
func bitsetFromInsts(index *ValueIndex, insts []ir.Instruction) Bitset {
	b := NewBitset(len(index.Instructions()))
	for _, inst := range insts {
		if inst == nil {
			continue
		}
		if pos, ok := index.InstructionPosition(inst); ok {
			b.SetInPlace(pos)
		}
	}
	return b
}

// CreateLoadPack builds a Load-variant pack over an ordered chain of loads
// (nil entries are don't-care lanes). elements/depended are supplied by the
// caller, since they depend on the seed-enumeration or extension context
// that produced the chain.
func (ctx *VectorPackContext) CreateLoadPack(loads []*ir.LoadInstruction, elements, depended Bitset) *VectorPack {
	vals := make([]*ir.Value, len(loads))
	insts := make([]ir.Instruction, 0, len(loads))
	for i, l := range loads {
		if l != nil {
			vals[i] = l.GetResult()
			insts = append(insts, l)
		}
	}

	var elemKind ir.ScalarKind
	for _, l := range loads {
		if l != nil {
			if st, ok := l.ElemType.(*ir.ScalarType); ok {
				elemKind = st.Kind
				break
			}
		}
	}
	vecType := &ir.VectorType{Elem: elemKind, NumLanes: len(loads)}

	cost := ctx.cost.MemOpCost(MemOpLoad, vecType, 1)
	if IsUnknown(cost) {
		return nil
	}

	vp := &VectorPack{
		Kind:          PackLoad,
		Loads:         loads,
		Elements:      elements,
		Depended:      depended,
		Cost:          cost,
		ProducingCost: cost,
		OrderedValues: vals,
	}
	ctx.allPacks = append(ctx.allPacks, vp)
	return vp
}

// CreateStorePack builds a Store-variant pack. Its one operand pack is the
// sequence of values being stored, since that is what a caller must produce
// as a vector register before the store executes.
func (ctx *VectorPackContext) CreateStorePack(stores []*ir.StoreInstruction, elements, depended Bitset) *VectorPack {
	storedVals := make([]*ir.Value, len(stores))
	insts := make([]ir.Instruction, 0, len(stores))
	var elemKind ir.ScalarKind
	for i, s := range stores {
		if s != nil {
			storedVals[i] = s.Value
			insts = append(insts, s)
			if st, ok := s.ElemType.(*ir.ScalarType); ok {
				elemKind = st.Kind
			}
		}
	}
	vecType := &ir.VectorType{Elem: elemKind, NumLanes: len(stores)}
	cost := ctx.cost.MemOpCost(MemOpStore, vecType, 1)
	if IsUnknown(cost) {
		return nil
	}

	operand := ctx.GetCanonicalOperandPack(storedVals)

	vp := &VectorPack{
		Kind:          PackStore,
		Stores:        stores,
		Elements:      elements,
		Depended:      depended,
		Cost:          cost,
		ProducingCost: cost,
		OperandPacks:  []*OperandPack{operand},
		OrderedValues: nil,
	}
	ctx.allPacks = append(ctx.allPacks, vp)
	return vp
}

// CreatePhiPack builds a Phi-variant pack: one operand pack per incoming
// edge, assuming every phi shares the same predecessor ordering.
func (ctx *VectorPackContext) CreatePhiPack(phis []*ir.PhiInstruction) *VectorPack {
	vals := make([]*ir.Value, len(phis))
	insts := make([]ir.Instruction, len(phis))
	for i, p := range phis {
		vals[i] = p.Result
		insts[i] = p
	}

	var operandPacks []*OperandPack
	if len(phis) > 0 {
		numEdges := len(phis[0].Edges)
		for e := 0; e < numEdges; e++ {
			edgeVals := make([]*ir.Value, len(phis))
			for i, p := range phis {
				if e < len(p.Edges) {
					edgeVals[i] = p.Edges[e].Value
				}
			}
			operandPacks = append(operandPacks, ctx.GetCanonicalOperandPack(edgeVals))
		}
	}

	elements := bitsetFromInsts(ctx.index, insts)
	vp := &VectorPack{
		Kind:          PackPhi,
		Phis:          phis,
		Elements:      elements,
		Depended:      NewBitset(ctx.index.Len()),
		OperandPacks:  operandPacks,
		OrderedValues: vals,
	}
	ctx.allPacks = append(ctx.allPacks, vp)
	return vp
}

// CreateVectorPack builds a General-variant pack from one InstBinding match
// per lane. computeOperandPacks derives the operand packs from the binding's
// lane signature: for each input slot, zip each lane's matched input into
// one operand pack, in lane order.
func (ctx *VectorPackContext) CreateVectorPack(matches []Match, elements, depended Bitset, binding *InstBinding) *VectorPack {
	vals := make([]*ir.Value, len(matches))
	for i, m := range matches {
		vals[i] = m.Output
	}

	operandPacks := ctx.computeOperandPacks(matches)

	vecType := &ir.VectorType{Elem: binding.ElemType, NumLanes: len(matches)}
	cost := ctx.cost.ArithCost(binding.Name, vecType)
	if IsUnknown(cost) {
		return nil
	}

	vp := &VectorPack{
		Kind:          PackGeneral,
		Binding:       binding,
		Matches:       matches,
		Elements:      elements,
		Depended:      depended,
		Cost:          cost,
		ProducingCost: cost,
		OperandPacks:  operandPacks,
		OrderedValues: vals,
	}
	ctx.allPacks = append(ctx.allPacks, vp)
	return vp
}

// computeOperandPacks zips each lane's matched inputs, slot by slot, padding
// with don't-cares when a lane offers fewer inputs than the widest lane.
func (ctx *VectorPackContext) computeOperandPacks(matches []Match) []*OperandPack {
	maxSlots := 0
	for _, m := range matches {
		if len(m.Inputs) > maxSlots {
			maxSlots = len(m.Inputs)
		}
	}

	packs := make([]*OperandPack, 0, maxSlots)
	for slot := 0; slot < maxSlots; slot++ {
		vals := make([]*ir.Value, len(matches))
		for i, m := range matches {
			if slot < len(m.Inputs) {
				vals[i] = m.Inputs[slot]
			}
		}
		packs = append(packs, ctx.GetCanonicalOperandPack(vals))
	}
	return packs
}

// AllPacks returns every pack interned by this context so far, for
// diagnostics and for the DP solver's enumeration cache.
func (ctx *VectorPackContext) AllPacks() []*VectorPack { return ctx.allPacks }
