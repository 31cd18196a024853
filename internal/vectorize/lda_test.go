// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalDependenceAnalysisOperandChain(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})

	loadAPos, _ := index.InstructionPosition(block.Instructions[0])
	loadBPos, _ := index.InstructionPosition(block.Instructions[1])
	addPos, _ := index.InstructionPosition(block.Instructions[2])
	storePos, _ := index.InstructionPosition(block.Instructions[3])

	assert.True(t, lda.Depended(addPos).Test(loadAPos))
	assert.True(t, lda.Depended(addPos).Test(loadBPos))
	assert.True(t, lda.Depended(storePos).Test(addPos))
	assert.False(t, lda.Depended(loadAPos).Test(addPos), "a load must not depend on its own user")
}

func TestLocalDependenceAnalysisIndependentAcrossIterations(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})

	firstAddPos, _ := index.InstructionPosition(block.Instructions[2])
	secondAddPos, _ := index.InstructionPosition(block.Instructions[6])

	assert.True(t, lda.AreIndependent(firstAddPos, secondAddPos))
	assert.False(t, lda.AreIndependent(firstAddPos, firstAddPos), "an instruction is never independent of itself")
}

func TestLocalDependenceAnalysisDependedAndReachesAreDisjointFromIndependent(t *testing.T) {
	_, block := buildBlock(3)
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})

	n := len(index.Instructions())
	for pos := 0; pos < n; pos++ {
		independent := lda.Independent(pos)
		assert.True(t, independent.Disjoint(lda.Depended(pos)),
			"independent set must exclude everything pos depends on")
		assert.False(t, independent.Test(pos), "pos is never independent of itself")
	}
}
