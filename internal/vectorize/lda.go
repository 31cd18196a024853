// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// AliasResult is a tri-state answer to "may these two memory accesses touch
// the same location".
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

// AliasOracle is the host-supplied per-block memory dependence collaborator.
// The core never does alias analysis itself; it only asks pairwise questions.
type AliasOracle interface {
	MayAlias(a, b ir.Instruction) AliasResult
}

// LocalDependenceAnalysis computes, for every instruction in a block, the
// transitive closure of what it depends on (operand chains plus ordered
// memory conflicts), and the dual "independent" relation used to decide
// whether two instructions may be co-scheduled into the same pack.
type LocalDependenceAnalysis struct {
	index    *ValueIndex
	depended []Bitset // keyed by instruction position
	reaches  []Bitset // reaches[i] = positions j such that i ∈ depended[j]
}

// NewLocalDependenceAnalysis builds the analysis in a single pass over the
// block's instructions in program order, which is already a topological
// order for a straight-line block.
func NewLocalDependenceAnalysis(index *ValueIndex, oracle AliasOracle) *LocalDependenceAnalysis {
	insts := index.Instructions()
	n := len(insts)

	lda := &LocalDependenceAnalysis{
		index:    index,
		depended: make([]Bitset, n),
		reaches:  make([]Bitset, n),
	}

	for i := range insts {
		lda.depended[i] = NewBitset(n)
		lda.reaches[i] = NewBitset(n)
	}

	posOf := make(map[ir.Instruction]int, n)
	for i, inst := range insts {
		posOf[inst] = i
	}

	isMemory := func(inst ir.Instruction) (write bool, ok bool) {
		for _, eff := range inst.GetEffects() {
			if m, isMem := eff.(*ir.MemoryEffect); isMem {
				return m.Kind == ir.MemoryEffectWrite, true
			}
		}
		return false, false
	}

	for i, inst := range insts {
		dep := NewBitset(n)

		for _, operand := range inst.GetOperands() {
			if j, ok := posOf[operand.DefInst]; ok {
				dep.SetInPlace(j)
				dep = dep.Union(lda.depended[j])
			}
		}

		if _, memOk := isMemory(inst); memOk {
			for j := 0; j < i; j++ {
				prior := insts[j]
				priorWrite, priorOk := isMemory(prior)
				if !priorOk {
					continue
				}
				_, curWrite := isMemory(inst)
				if !priorWrite && !curWrite {
					continue // both reads: no ordering requirement
				}
				if oracle.MayAlias(inst, prior) == NoAlias {
					continue
				}
				dep.SetInPlace(j)
				dep = dep.Union(lda.depended[j])
			}
		}

		lda.depended[i] = dep
		dep.ForEach(func(j int) { lda.reaches[j] = lda.reaches[j].Set(i) })
	}

	return lda
}

// Depended returns the transitive dependency set of inst, by instruction
// position.
func (lda *LocalDependenceAnalysis) Depended(pos int) Bitset { return lda.depended[pos] }

// Independent returns the set of instruction positions that neither depend
// on pos nor are depended on by pos.
func (lda *LocalDependenceAnalysis) Independent(pos int) Bitset {
	n := len(lda.depended)
	result := lda.depended[pos].Complement(n)
	result = result.Clear(pos)
	result = result.Difference(lda.reaches[pos])
	return result
}

// AreIndependent reports whether a and b may be co-scheduled in one pack.
func (lda *LocalDependenceAnalysis) AreIndependent(a, b int) bool {
	return lda.Independent(a).Test(b)
}
