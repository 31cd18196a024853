// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"sort"

	"superpack/internal/ir"
)

// Frontier is a partial-assignment search state: every instruction in the
// block is either scalarized (frozen) or still free, and the cursor tracks
// progress scanning the block back to front. Frontier is immutable -
// AdvanceScalar/AdvancePack/AdvanceShuffle return a new Frontier rather than mutating the
// receiver, so a search tree can hold many Frontiers sharing most of their
// bitset storage through Bitset's clone-on-write semantics.
type Frontier struct {
	ctx *VectorPackContext

	cursor int // position of the next free instruction to consider, or -1

	free              Bitset // positions not yet scalarized or covered by a pack
	unresolvedScalars Bitset // positions whose result still needs a concrete value
	usable            Bitset // positions with no remaining in-block free user

	unresolvedPacks []*OperandPack // sorted by Seq(); operand packs still owed a value
}

// NewFrontier builds the starting frontier for ctx's block: cursor at the
// last instruction, every position free, unresolvedScalars seeded for values
// with no in-block user (approximating "has an out-of-block user" for a
// single-block IR), and usable seeded for positions with no in-block user at
// all, plus every phi.
func NewFrontier(ctx *VectorPackContext) *Frontier {
	index := ctx.index
	n := index.Len()
	_ = n
	numPos := len(index.Instructions())

	free := NewBitset(numPos)
	unresolvedScalars := NewBitset(numPos)
	usable := NewBitset(numPos)

	for pos, inst := range index.Instructions() {
		free.SetInPlace(pos)

		result := inst.GetResult()
		if result == nil {
			continue
		}
		users := index.Users(result)
		if len(users) == 0 {
			unresolvedScalars.SetInPlace(pos)
			usable.SetInPlace(pos)
		}
	}
	for pos, inst := range index.Instructions() {
		if _, ok := inst.(*ir.PhiInstruction); ok {
			usable.SetInPlace(pos)
		}
	}

	return &Frontier{
		ctx:               ctx,
		cursor:            numPos - 1,
		free:              free,
		unresolvedScalars: unresolvedScalars,
		usable:            usable,
	}
}

// Cursor returns the position the search is currently considering.
func (f *Frontier) Cursor() int { return f.cursor }

// Free returns the bitset of positions not yet scalarized or packed.
func (f *Frontier) Free() Bitset { return f.free }

// Usable returns the bitset of positions with no remaining in-block free
// user - candidates for the next scalarize or pack step.
func (f *Frontier) Usable() Bitset { return f.usable }

// UnresolvedPacks returns the operand packs still owed a concrete value,
// sorted by intern order.
func (f *Frontier) UnresolvedPacks() []*OperandPack { return f.unresolvedPacks }

// Terminal reports whether every instruction has been accounted for and
// every operand pack this plan depends on has been resolved.
func (f *Frontier) Terminal() bool {
	return f.unresolvedScalars.IsEmpty() && len(f.unresolvedPacks) == 0 && f.free.IsEmpty()
}

func (f *Frontier) clone() *Frontier {
	return &Frontier{
		ctx:               f.ctx,
		cursor:            f.cursor,
		free:              f.free,
		unresolvedScalars: f.unresolvedScalars,
		usable:            f.usable,
		unresolvedPacks:   f.unresolvedPacks,
	}
}

// advanceCursor walks cursor down past any position that is no longer free.
func advanceCursor(free Bitset, cursor int) int {
	for cursor >= 0 && !free.Test(cursor) {
		cursor--
	}
	return cursor
}

func packContainsValue(op *OperandPack, v *ir.Value) bool {
	for _, val := range op.Values {
		if val == v {
			return true
		}
	}
	return false
}

// slotFrozen reports whether v's defining instruction (if any) is no longer
// free - a nil value or a value defined outside the block counts as already
// settled.
func slotFrozen(index *ValueIndex, free Bitset, v *ir.Value) bool {
	if v == nil || v.DefInst == nil {
		return true
	}
	pos, ok := index.InstructionPosition(v.DefInst)
	if !ok {
		return true
	}
	return !free.Test(pos)
}

func operandPackResolved(index *ValueIndex, free Bitset, op *OperandPack) bool {
	for _, v := range op.Values {
		if !slotFrozen(index, free, v) {
			return false
		}
	}
	return true
}

func sortUnresolvedPacks(packs []*OperandPack) {
	sort.Slice(packs, func(i, j int) bool { return packs[i].Seq() < packs[j].Seq() })
}

// AdvanceScalar scalarizes inst: inst is emitted as a plain scalar
// instruction rather than folded into any vector pack. Returns the
// incremental cost paid (scalar emission plus any insert/broadcast cost
// owed to packs waiting on inst's result) and the resulting Frontier.
func (f *Frontier) AdvanceScalar(inst ir.Instruction) (float64, *Frontier) {
	index := f.ctx.index
	pos, ok := index.InstructionPosition(inst)
	if !ok {
		return 0, f
	}

	cost := f.ctx.cost.ScalarCost(inst)

	nextFree := f.free.Clear(pos)
	nextUnresolvedScalars := f.unresolvedScalars.Clear(pos)
	nextUsable := f.usable.Clear(pos)

	// Step 2: any in-block operand of inst whose last free user was inst
	// becomes usable.
	for _, operand := range inst.GetOperands() {
		if operand == nil || operand.DefInst == nil {
			continue
		}
		opPos, ok := index.InstructionPosition(operand.DefInst)
		if !ok || !nextFree.Test(opPos) {
			continue
		}
		allFrozen := true
		for _, user := range index.Users(operand) {
			uPos, ok := index.InstructionPosition(user)
			if ok && nextFree.Test(uPos) {
				allFrozen = false
				break
			}
		}
		if allFrozen {
			nextUsable = nextUsable.Set(opPos)
		}
	}

	// Step 4: resolve any operand pack containing inst's result.
	var nextUnresolvedPacks []*OperandPack
	if result := inst.GetResult(); result != nil {
		for _, pack := range f.unresolvedPacks {
			if !packContainsValue(pack, result) {
				nextUnresolvedPacks = append(nextUnresolvedPacks, pack)
				continue
			}
			if pack.IsSplat() {
				cost += f.ctx.cost.ShuffleCost(ShuffleBroadcast, pack.VectorType(), 0)
				continue
			}
			for lane, v := range pack.Values {
				if v == result {
					cost += f.ctx.cost.VectorInstrCost(VectorInsert, pack.VectorType(), lane)
				}
			}
			if !operandPackResolved(index, nextFree, pack) {
				nextUnresolvedPacks = append(nextUnresolvedPacks, pack)
			}
		}
	} else {
		nextUnresolvedPacks = f.unresolvedPacks
	}
	sortUnresolvedPacks(nextUnresolvedPacks)

	// Step 5: inst's still-free operands now need a concrete value too.
	for _, operand := range inst.GetOperands() {
		if operand == nil || operand.DefInst == nil {
			continue
		}
		opPos, ok := index.InstructionPosition(operand.DefInst)
		if ok && nextFree.Test(opPos) {
			nextUnresolvedScalars = nextUnresolvedScalars.Set(opPos)
		}
	}

	next := f.clone()
	next.free = nextFree
	next.unresolvedScalars = nextUnresolvedScalars
	next.usable = nextUsable
	next.unresolvedPacks = nextUnresolvedPacks
	next.cursor = advanceCursor(nextFree, f.cursor)
	return cost, next
}

// AdvancePack commits pack: every instruction pack replaces is frozen at
// once, any lane that was already an unresolved scalar is paid an extract
// cost, and any other unresolved pack that pack happens to produce lanes for
// is paid a gather or shuffle cost. pack's own operand packs are queued as
// newly unresolved unless already satisfied.
func (f *Frontier) AdvancePack(pack *VectorPack) (float64, *Frontier) {
	index := f.ctx.index
	cost := pack.Cost

	nextFree := f.free.Clone()
	nextUsable := f.usable.Clone()
	nextUnresolvedScalars := f.unresolvedScalars.Clone()

	vecType := pack.VectorType()

	// Step 2: pay extract cost for elements that were already unresolved
	// scalars (someone outside the block needs that lane's value).
	lane := 0
	for _, pos := range pack.Elements.Elements() {
		if f.unresolvedScalars.Test(pos) {
			cost += f.ctx.cost.VectorInstrCost(VectorExtract, vecType, lane)
		}
		lane++
	}

	// Step 3: freeze every instruction the pack replaces.
	replaced := pack.replacedInstructions()
	for _, inst := range replaced {
		pos, ok := index.InstructionPosition(inst)
		if !ok {
			continue
		}
		nextFree = nextFree.Clear(pos)
		nextUsable = nextUsable.Clear(pos)
		nextUnresolvedScalars = nextUnresolvedScalars.Clear(pos)
	}

	packValues := make(map[*ir.Value]bool, len(pack.OrderedValues))
	for _, v := range pack.OrderedValues {
		if v != nil {
			packValues[v] = true
		}
	}

	// Step 5: settle up with any operand pack this new pack happens to feed.
	var carried []*OperandPack
	for _, existing := range f.unresolvedPacks {
		produces := false
		for _, v := range existing.Values {
			if v != nil && packValues[v] {
				produces = true
				break
			}
		}
		if produces {
			if sameSequence(pack.OrderedValues, existing.Values) {
				// exact match: no gather needed.
			} else {
				cost += f.ctx.cost.ShuffleCost(ShuffleGeneral, existing.VectorType(), 0)
			}
		}
		if !operandPackResolved(index, nextFree, existing) {
			carried = append(carried, existing)
		}
	}

	// Step 6: pack's own operand packs. Foreign-block or non-instruction
	// lanes are paid an insert cost up front; the pack itself is queued as
	// newly unresolved unless it's already fully resolved.
	for _, op := range pack.OperandPacks {
		for slotLane, v := range op.Values {
			if v == nil {
				continue
			}
			if slotFrozen(index, nextFree, v) && (v.DefInst == nil || !inReplaced(replaced, v.DefInst)) {
				if _, inBlock := index.InstructionPosition(v.DefInst); v.DefInst == nil || !inBlock {
					cost += f.ctx.cost.VectorInstrCost(VectorInsert, op.VectorType(), slotLane)
				}
			}
		}
		if !operandPackResolved(index, nextFree, op) {
			carried = appendUnresolvedIfAbsent(carried, op)
		}
	}

	sortUnresolvedPacks(carried)

	next := f.clone()
	next.free = nextFree
	next.unresolvedScalars = nextUnresolvedScalars
	next.usable = nextUsable
	next.unresolvedPacks = carried
	next.cursor = advanceCursor(nextFree, f.cursor)
	return cost, next
}

func inReplaced(replaced []ir.Instruction, inst ir.Instruction) bool {
	for _, r := range replaced {
		if r == inst {
			return true
		}
	}
	return false
}

func sameSequence(a, b []*ir.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func appendUnresolvedIfAbsent(packs []*OperandPack, op *OperandPack) []*OperandPack {
	for _, p := range packs {
		if p == op {
			return packs
		}
	}
	return append(packs, op)
}

// AdvanceShuffle replaces an unresolved operand pack with a differently
// ordered list of inputs (e.g. after deciding to feed it via a permute
// rather than a gather), paying a general shuffle cost and re-queuing the
// reshuffled pack if it is still unresolved.
func (f *Frontier) AdvanceShuffle(old *OperandPack, newInputs []*ir.Value) (float64, *Frontier) {
	index := f.ctx.index
	cost := f.ctx.cost.ShuffleCost(ShuffleGeneral, old.VectorType(), 0)

	replacement := f.ctx.GetCanonicalOperandPack(newInputs)

	var carried []*OperandPack
	for _, p := range f.unresolvedPacks {
		if p == old {
			continue
		}
		carried = append(carried, p)
	}
	if !operandPackResolved(index, f.free, replacement) {
		carried = appendUnresolvedIfAbsent(carried, replacement)
	}
	sortUnresolvedPacks(carried)

	next := f.clone()
	next.unresolvedPacks = carried
	return cost, next
}
