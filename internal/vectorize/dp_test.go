// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"superpack/internal/ir"
)

func TestDPSolverProducesDisjointTerminalPlan(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})
	ctx := NewVectorPackContext(index, testCostModel{})
	ctx.SetDependenceAnalysis(lda)

	loadA0 := block.Instructions[0].(*ir.LoadInstruction)
	loadA1 := block.Instructions[4].(*ir.LoadInstruction)
	ctx.CreateLoadPack([]*ir.LoadInstruction{loadA0, loadA1},
		bitsetFromInsts(index, []ir.Instruction{loadA0, loadA1}), NewBitset(index.Len()))

	solver := NewDPSolver(ctx, 0)
	cost, plan := solver.Solve(NewFrontier(ctx))

	assert.GreaterOrEqual(t, cost, 0.0)
	assert.Equal(t, plan.VerifyCost(), plan.Cost())

	covered := NewBitset(index.Len())
	for _, pack := range plan.Packs() {
		assert.True(t, pack.Elements.Disjoint(covered))
		covered = covered.Union(pack.Elements)
	}
}

func TestDPSolverIsMemoizedAcrossIdenticalFrontierStates(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	solver := NewDPSolver(ctx, 0)
	root := NewFrontier(ctx)
	solver.solve(root)

	explored := solver.explored
	solver.solve(root)
	assert.Equal(t, explored, solver.explored, "re-solving an already-memoized frontier must not explore further states")
}

func TestDPSolverRespectsEnumCapByFallingBackToHeuristic(t *testing.T) {
	_, block := buildBlock(3)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	solver := NewDPSolver(ctx, 1)
	cost, plan := solver.Solve(NewFrontier(ctx))

	assert.LessOrEqual(t, solver.explored, 1)
	assert.GreaterOrEqual(t, cost, 0.0)
	assert.NotNil(t, plan)
}

func TestFrontierKeyDistinguishesDifferentFreeSets(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	root := NewFrontier(ctx)
	add := block.Instructions[2].(*ir.BinaryInstruction)
	_, advanced := root.AdvanceScalar(add)

	assert.NotEqual(t, frontierKey(root), frontierKey(advanced))
}
