// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"superpack/internal/ir"
)

func TestPartialPackWithLaneTracksAssignmentProgress(t *testing.T) {
	_, block := buildBlock(2)
	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	loadA1 := block.Instructions[4].(*ir.LoadInstruction)

	pp := NewPartialPack(PackLoad, 2)
	assert.Equal(t, 2, pp.Width())
	assert.Equal(t, 0, pp.NumAssigned())
	assert.False(t, pp.IsComplete())
	assert.Equal(t, 0, pp.OpenLane())

	pp1 := pp.WithLane(0, loadA0)
	assert.Equal(t, 0, pp.NumAssigned(), "WithLane must not mutate the receiver")
	assert.Equal(t, 1, pp1.NumAssigned())
	assert.Same(t, ir.Instruction(loadA0), pp1.LaneAt(0))
	assert.Equal(t, 1, pp1.OpenLane())

	pp2 := pp1.WithLane(1, loadA1)
	assert.True(t, pp2.IsComplete())
	assert.Equal(t, -1, pp2.OpenLane())
}

func TestPartialPackFinalizeRejectsIncompletePack(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	pp := NewPartialPack(PackLoad, 2).WithLane(0, loadA0)

	vp, ok := pp.Finalize(ctx, nil)
	assert.False(t, ok)
	assert.Nil(t, vp)
}

func TestPartialPackFinalizeInternsACompleteLoadPack(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})
	ctx := NewVectorPackContext(index, testCostModel{})
	ctx.SetDependenceAnalysis(lda)

	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	loadA1 := block.Instructions[4].(*ir.LoadInstruction)

	pp := NewPartialPack(PackLoad, 2).WithLane(0, loadA0).WithLane(1, loadA1)
	vp, ok := pp.Finalize(ctx, lda)
	assert.True(t, ok)
	assert.NotNil(t, vp)
	assert.Equal(t, PackLoad, vp.Kind)
	assert.Len(t, ctx.AllPacks(), 1)
}

// Regression test for the Finalize bugfix: a completed pack whose cost model
// cannot price it must come back (nil, false), not a non-nil pack with a
// bogus cost.
func TestPartialPackFinalizeRejectsUnknownCost(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})
	ctx := NewVectorPackContext(index, unknownCostModel{})
	ctx.SetDependenceAnalysis(lda)

	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	loadA1 := block.Instructions[4].(*ir.LoadInstruction)

	pp := NewPartialPack(PackLoad, 2).WithLane(0, loadA0).WithLane(1, loadA1)
	vp, ok := pp.Finalize(ctx, lda)
	assert.False(t, ok)
	assert.Nil(t, vp)
	assert.Empty(t, ctx.AllPacks(), "a rejected pack must never be interned")
}

func TestPartialGeneralPackWithMatchRecordsMatchAlongsideLane(t *testing.T) {
	_, block := buildBlock(1)
	add := block.Instructions[2].(*ir.BinaryInstruction)

	addOp := &BinaryOpOperation{Op: "add"}
	m, ok := addOp.Match(add.Result)
	assert.True(t, ok)

	binding := &InstBinding{Name: "add", Lanes: []LaneBinding{{Op: addOp}, {Op: addOp}}, ElemType: ir.I32}
	pp := NewPartialGeneralPack(binding)
	assert.Equal(t, 2, pp.Width())

	pp1 := pp.WithMatch(0, m)
	assert.Equal(t, 1, pp1.NumAssigned())
	assert.Same(t, ir.Instruction(add), pp1.LaneAt(0))
}

func TestPartialGeneralPackFinalizeInternsACompleteGeneralPack(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})
	ctx := NewVectorPackContext(index, testCostModel{})
	ctx.SetDependenceAnalysis(lda)

	addOp := &BinaryOpOperation{Op: "add"}
	mm := NewMatchManager(index, []Operation{addOp})
	matches := mm.MatchesForOperation(addOp)
	assert.Len(t, matches, 2)

	binding := &InstBinding{Name: "add", Lanes: []LaneBinding{{Op: addOp}, {Op: addOp}}, ElemType: ir.I32}
	pp := NewPartialGeneralPack(binding).WithMatch(0, matches[0]).WithMatch(1, matches[1])
	assert.True(t, pp.IsComplete())

	vp, ok := pp.Finalize(ctx, lda)
	assert.True(t, ok)
	assert.NotNil(t, vp)
	assert.Equal(t, PackGeneral, vp.Kind)
	assert.Len(t, vp.Matches, 2)
}
