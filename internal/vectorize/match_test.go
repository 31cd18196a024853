// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"superpack/internal/ir"
)

func TestBinaryOpOperationMatchesOnlySameOpcode(t *testing.T) {
	_, block := buildBlock(1)
	add := block.Instructions[2].(*ir.BinaryInstruction)

	addOp := &BinaryOpOperation{Op: "add"}
	m, ok := addOp.Match(add.Result)
	assert.True(t, ok)
	assert.Equal(t, []*ir.Value{add.Left, add.Right}, m.Inputs)
	assert.Same(t, add.Result, m.Output)

	subOp := &BinaryOpOperation{Op: "sub"}
	_, ok = subOp.Match(add.Result)
	assert.False(t, ok, "an add instruction must not match a sub operation")
}

func TestUnaryOpOperationMatch(t *testing.T) {
	block := &ir.BasicBlock{Label: "entry"}
	operand := &ir.Value{ID: 1, Type: i32()}
	neg := &ir.UnaryInstruction{ID: 2, Block: block, Op: "neg", Operand: operand}
	neg.Result = &ir.Value{ID: 3, Type: i32(), DefInst: neg}

	op := &UnaryOpOperation{Op: "neg"}
	m, ok := op.Match(neg.Result)
	assert.True(t, ok)
	assert.Equal(t, []*ir.Value{operand}, m.Inputs)

	notOp := &UnaryOpOperation{Op: "not"}
	_, ok = notOp.Match(neg.Result)
	assert.False(t, ok)
}

func TestMatchManagerCachesEveryMatchPerOperation(t *testing.T) {
	_, block := buildBlock(3)
	index := NewValueIndex(block)
	addOp := &BinaryOpOperation{Op: "add"}
	mm := NewMatchManager(index, []Operation{addOp})

	matches := mm.MatchesForOperation(addOp)
	assert.Len(t, matches, 3, "one add per iteration of buildBlock")

	add0 := block.Instructions[2].(*ir.BinaryInstruction)
	byOutput := mm.MatchesForOutput(add0.Result)
	assert.Len(t, byOutput, 1)
	assert.Same(t, add0.Result, byOutput[0].Output)
}

func TestMatchManagerIgnoresUnmatchedOperations(t *testing.T) {
	_, block := buildBlock(2)
	index := NewValueIndex(block)
	mulOp := &BinaryOpOperation{Op: "mul"}
	mm := NewMatchManager(index, []Operation{mulOp})

	assert.Empty(t, mm.MatchesForOperation(mulOp), "buildBlock never emits a mul")
}

func TestInstBindingArityAndFeatureGating(t *testing.T) {
	addOp := &BinaryOpOperation{Op: "add"}
	binding := &InstBinding{
		Name:             "vadd",
		RequiredFeatures: []string{"avx2"},
		Lanes:            []LaneBinding{{Op: addOp}, {Op: addOp}, {Op: addOp}, {Op: addOp}},
		ElemType:         ir.I32,
	}
	assert.Equal(t, 4, binding.Arity())

	assert.False(t, binding.SupportedBy(NewFeatureSet("sse2")))
	assert.True(t, binding.SupportedBy(NewFeatureSet("avx2", "fma")))
}

func TestDefaultOperationsCoversArithmeticAndUnaryMnemonics(t *testing.T) {
	ops := DefaultOperations()
	names := make(map[string]bool, len(ops))
	for _, op := range ops {
		names[op.Name()] = true
	}
	for _, want := range []string{"add", "sub", "mul", "div", "and", "or", "xor", "lt", "gt", "eq", "neg", "not"} {
		assert.True(t, names[want], "DefaultOperations must include %q", want)
	}
}
