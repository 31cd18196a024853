// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"superpack/internal/ir"
)

func TestHeuristicSolveIsMemoized(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})
	h := NewHeuristic(ctx)

	a0 := block.Instructions[0].GetResult()
	a1 := block.Instructions[4].GetResult()
	op := ctx.GetCanonicalOperandPack([]*ir.Value{a0, a1})

	first := h.Solve(op)
	second := h.Solve(op)
	assert.Equal(t, first, second)
}

func TestHeuristicPrefersAnInternedLoadPackOverGathering(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	loadA1 := block.Instructions[4].(*ir.LoadInstruction)
	a0 := loadA0.GetResult()
	a1 := loadA1.GetResult()
	op := ctx.GetCanonicalOperandPack([]*ir.Value{a0, a1})

	h := NewHeuristic(ctx)
	withoutPack := h.Solve(op)

	ctx.CreateLoadPack([]*ir.LoadInstruction{loadA0, loadA1},
		bitsetFromInsts(index, []ir.Instruction{loadA0, loadA1}), NewBitset(index.Len()))
	h2 := NewHeuristic(ctx)
	withPack := h2.Solve(op)

	assert.True(t, withPack <= withoutPack, "a matching vector load pack should never cost more than gathering scalars")
}

func TestHeuristicSplatUsesBroadcast(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})
	h := NewHeuristic(ctx)

	a0 := block.Instructions[0].GetResult()
	splat := ctx.GetCanonicalOperandPack([]*ir.Value{a0, a0, a0, a0})
	assert.True(t, splat.IsSplat())

	cost := h.Solve(splat)
	assert.Equal(t, 1.0+1.0, cost, "scalar cost of the one source plus one broadcast shuffle")
}
