// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolloutEvaluatorWithoutPolicyChargesScalarAndHeuristicCosts(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})
	eval := NewRolloutEvaluator(ctx, nil)

	root := NewFrontier(ctx)
	cost := eval.Evaluate(root)
	assert.Equal(t, float64(len(index.Instructions())), cost, "every position still free costs exactly one scalar unit under testCostModel")
}

// stubBackend answers every batch with a fixed value estimate, used to check
// that RolloutEvaluator blends it in rather than ignoring it.
type stubBackend struct{ value float64 }

func (s stubBackend) EvaluateBatch(inputs []PolicyInput) ([]PolicyOutput, error) {
	out := make([]PolicyOutput, len(inputs))
	for i := range inputs {
		out[i] = PolicyOutput{Value: s.value}
	}
	return out, nil
}

func TestRolloutEvaluatorBlendsPolicyValueWhenAttached(t *testing.T) {
	_, block := buildBlock(1)
	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})

	policy := NewNeuralPackingPolicy(stubBackend{value: 0}, 1, 1, nil)
	defer policy.Cancel()

	eval := NewRolloutEvaluator(ctx, policy)
	root := NewFrontier(ctx)

	withPolicy := eval.Evaluate(root)
	withoutPolicy := NewRolloutEvaluator(ctx, nil).Evaluate(root)

	assert.Equal(t, withoutPolicy/2, withPolicy, "a zero-valued policy estimate should pull the blended cost down by half")
}
