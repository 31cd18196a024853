// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// Operation is a single pattern the catalog can recognize against a value.
// It is the core's only extension point for instruction selection; the
// core never inspects opcodes directly once a catalog is supplied.
type Operation interface {
	Name() string
	Match(v *ir.Value) (Match, bool)
}

// Match records one successful pattern match: the operand values consumed
// and the value produced.
type Match struct {
	Op     Operation
	Inputs []*ir.Value
	Output *ir.Value
}

// LaneBinding is one lane's operation within an InstBinding - for a binary
// vector add, every lane binds the same Operation, but the catalog allows
// heterogeneous per-lane operations (e.g. a widen/narrow conversion pack).
type LaneBinding struct {
	Op Operation
}

// InstBinding is a catalog entry: an operation plus how it maps input and
// output lanes, along with the target features it requires. It is the only
// place true virtual dispatch earns its keep - catalog plug-ins.
type InstBinding struct {
	Name             string
	RequiredFeatures []string
	Lanes            []LaneBinding
	ElemType         ir.ScalarKind
}

// Arity is the pack's lane count for this binding.
func (b *InstBinding) Arity() int { return len(b.Lanes) }

// SupportedBy reports whether every feature this binding requires is present
// in features.
func (b *InstBinding) SupportedBy(features TargetFeatures) bool {
	for _, f := range b.RequiredFeatures {
		if !features.Has(f) {
			return false
		}
	}
	return true
}

// MatchManager caches, per basic block, every match of every catalog
// operation so the search engine never re-scans the block while enumerating
// packs.
type MatchManager struct {
	byOp     map[Operation][]Match
	byOutput map[*ir.Value][]Match
}

// NewMatchManager walks the block once (via index) and records every
// Operation match. The same (operation, output) pair is recorded at most
// once, since Match is invoked once per (op, value) pair.
func NewMatchManager(index *ValueIndex, ops []Operation) *MatchManager {
	mm := &MatchManager{
		byOp:     make(map[Operation][]Match),
		byOutput: make(map[*ir.Value][]Match),
	}

	for _, inst := range index.Instructions() {
		result := inst.GetResult()
		if result == nil {
			continue
		}
		for _, op := range ops {
			m, ok := op.Match(result)
			if !ok {
				continue
			}
			mm.byOp[op] = append(mm.byOp[op], m)
			mm.byOutput[result] = append(mm.byOutput[result], m)
		}
	}

	return mm
}

// MatchesForOperation returns every match of op found in the block.
func (mm *MatchManager) MatchesForOperation(op Operation) []Match { return mm.byOp[op] }

// MatchesForOutput returns every match whose output equals v.
func (mm *MatchManager) MatchesForOutput(v *ir.Value) []Match { return mm.byOutput[v] }

// BinaryOpOperation recognizes ir.BinaryInstruction with a fixed opcode -
// the catalog's bread-and-butter entry for elementwise arithmetic packs.
type BinaryOpOperation struct {
	Op string
}

func (b *BinaryOpOperation) Name() string { return b.Op }

func (b *BinaryOpOperation) Match(v *ir.Value) (Match, bool) {
	bin, ok := v.DefInst.(*ir.BinaryInstruction)
	if !ok || bin.Op != b.Op {
		return Match{}, false
	}
	return Match{Op: b, Inputs: []*ir.Value{bin.Left, bin.Right}, Output: v}, true
}

// UnaryOpOperation recognizes ir.UnaryInstruction with a fixed opcode.
type UnaryOpOperation struct {
	Op string
}

func (u *UnaryOpOperation) Name() string { return u.Op }

func (u *UnaryOpOperation) Match(v *ir.Value) (Match, bool) {
	un, ok := v.DefInst.(*ir.UnaryInstruction)
	if !ok || un.Op != u.Op {
		return Match{}, false
	}
	return Match{Op: u, Inputs: []*ir.Value{un.Operand}, Output: v}, true
}

// DefaultOperations returns a catalog covering the arithmetic mnemonics the
// asm frontend accepts, good enough for the CLI and daemon until a
// target-specific catalog is supplied.
func DefaultOperations() []Operation {
	var ops []Operation
	for _, op := range []string{"add", "sub", "mul", "div", "and", "or", "xor", "lt", "gt", "eq"} {
		ops = append(ops, &BinaryOpOperation{Op: op})
	}
	for _, op := range []string{"neg", "not"} {
		ops = append(ops, &UnaryOpOperation{Op: op})
	}
	return ops
}
