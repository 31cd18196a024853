// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// ValueIndex assigns every value produced or referenced in a basic block a
// dense integer in [0, N), and every instruction (terminator included) its
// program-order position. The package's instruction bitsets (free, usable,
// elements, depended) are indexed by InstructionPosition; nothing outside
// ValueIndex hands out IDs.
type ValueIndex struct {
	block       *ir.BasicBlock
	idOf        map[*ir.Value]int
	valueOf     []*ir.Value
	instOf      []ir.Instruction
	instIndexOf map[ir.Instruction]int
	usersOf     map[*ir.Value][]ir.Instruction
}

// NewValueIndex walks block once, in program order, assigning IDs to every
// instruction result and to every operand value referenced (params, values
// defined in predecessor blocks, constants materialized elsewhere).
func NewValueIndex(block *ir.BasicBlock) *ValueIndex {
	vi := &ValueIndex{
		block:       block,
		idOf:        make(map[*ir.Value]int),
		instIndexOf: make(map[ir.Instruction]int),
		usersOf:     make(map[*ir.Value][]ir.Instruction),
	}

	assign := func(v *ir.Value) {
		if v == nil {
			return
		}
		if _, ok := vi.idOf[v]; ok {
			return
		}
		vi.idOf[v] = len(vi.valueOf)
		vi.valueOf = append(vi.valueOf, v)
	}

	all := block.AllInstructions()
	for i, inst := range all {
		vi.instIndexOf[inst] = i
		vi.instOf = append(vi.instOf, inst)
		for _, op := range inst.GetOperands() {
			assign(op)
			vi.usersOf[op] = append(vi.usersOf[op], inst)
		}
		if r := inst.GetResult(); r != nil {
			assign(r)
		}
	}

	return vi
}

// Len returns N, the number of distinct values indexed in this block.
func (vi *ValueIndex) Len() int { return len(vi.valueOf) }

// IDOf returns the dense ID for v, and false if v was never seen in this
// block (e.g. a value from an unrelated function).
func (vi *ValueIndex) IDOf(v *ir.Value) (int, bool) {
	id, ok := vi.idOf[v]
	return id, ok
}

// ValueAt returns the value with the given dense ID.
func (vi *ValueIndex) ValueAt(id int) *ir.Value { return vi.valueOf[id] }

// InstructionPosition returns inst's position within the block's program
// order, used to order chains and to drive the Frontier's backward cursor.
func (vi *ValueIndex) InstructionPosition(inst ir.Instruction) (int, bool) {
	pos, ok := vi.instIndexOf[inst]
	return pos, ok
}

// Instructions returns the block's instructions (incl. terminator) in
// program order.
func (vi *ValueIndex) Instructions() []ir.Instruction { return vi.instOf }

// IDOfInstruction returns the dense ID of inst's result, if any.
func (vi *ValueIndex) IDOfInstruction(inst ir.Instruction) (int, bool) {
	r := inst.GetResult()
	if r == nil {
		return 0, false
	}
	return vi.IDOf(r)
}

// Users returns the in-block instructions that consume v as an operand.
func (vi *ValueIndex) Users(v *ir.Value) []ir.Instruction { return vi.usersOf[v] }

