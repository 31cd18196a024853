// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"superpack/internal/ir"
)

func TestPackerOptimizeWithDPSolverProducesDisjointPlan(t *testing.T) {
	_, block := buildBlock(2)

	cfg := NewConfig(WithMCTS(false), WithEnumCap(2000))
	ops := []Operation{&BinaryOpOperation{Op: "add"}}
	packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, sequentialScev(), nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)
	assert.NotNil(t, plan)

	assert.Equal(t, plan.VerifyCost(), plan.Cost())

	var covered Bitset
	index := NewValueIndex(block)
	covered = NewBitset(len(index.Instructions()))
	for _, pack := range plan.Packs() {
		assert.True(t, pack.Elements.Disjoint(covered), "plan must never double-cover an instruction")
		covered = covered.Union(pack.Elements)
	}
}

func TestPackerOptimizeWithMCTSTerminates(t *testing.T) {
	_, block := buildBlock(2)

	cfg := NewConfig(WithMCTS(true), WithNumSimulations(16))
	ops := []Operation{&BinaryOpOperation{Op: "add"}}
	packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, sequentialScev(), nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)
	assert.NotNil(t, plan)
	assert.Equal(t, plan.VerifyCost(), plan.Cost())
}

// The six scenarios below are the literal end-to-end walkthroughs spec 8
// names, each exercised through Packer.Optimize rather than any single
// internal piece.

// Scenario 1: a single scalar add with no packing opportunity at all must
// produce an empty, zero-cost plan rather than forcing some degenerate pack.
func TestScenario1TrivialSplatYieldsEmptyPlan(t *testing.T) {
	block := &ir.BasicBlock{Label: "entry"}
	a := &ir.Value{ID: 1, Name: "a", Type: i32()}
	add := &ir.BinaryInstruction{ID: 2, Block: block, Op: "add", Left: a, Right: a}
	add.Result = &ir.Value{ID: 3, Type: i32(), DefInst: add, DefBlock: block}
	block.Instructions = []ir.Instruction{add}
	block.Terminator = &ir.ReturnTerminator{ID: 4, Block: block, Value: add.Result}

	ops := []Operation{&BinaryOpOperation{Op: "add"}}

	for _, useMCTS := range []bool{false, true} {
		cfg := NewConfig(WithMCTS(useMCTS), WithNumSimulations(8))
		packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, nil, nil, nil)
		plan, err := packer.Optimize(block)
		assert.NoError(t, err)
		assert.Empty(t, plan.Packs(), "a single unrepeated add has nothing to pack (useMCTS=%v)", useMCTS)
		assert.Equal(t, 0.0, plan.Cost())
	}
}

// Scenario 2: four consecutive c[i] = a[i] + b[i] stores must pack into one
// load pack per array, one vector add, and one store pack, strictly cheaper
// than running everything scalar.
func TestScenario2FourConsecutiveStoresPackCompletely(t *testing.T) {
	_, block := buildBlock(4)

	cfg := NewConfig(WithMCTS(false), WithEnumCap(4000))
	ops := []Operation{&BinaryOpOperation{Op: "add"}}
	packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, sequentialScev(), nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)

	var loads, stores, general int
	for _, pack := range plan.Packs() {
		switch pack.Kind {
		case PackLoad:
			loads++
		case PackStore:
			stores++
		case PackGeneral:
			general++
		}
	}
	assert.GreaterOrEqual(t, loads, 2, "both a[] and b[] should pack into load vectors")
	assert.GreaterOrEqual(t, stores, 1, "the four stores to c[] should pack into one store vector")
	assert.GreaterOrEqual(t, general, 1, "the four adds should pack into one vector add")

	const scalarSum = 16.0 // 4 loads from a, 4 from b, 4 adds, 4 stores, one unit each
	assert.Less(t, plan.Cost(), scalarSum)
}

// Scenario 3: four loads at non-consecutive addresses must never seed a load
// pack, even though the arithmetic consuming them can still pack via insert
// costs - or the search may decide fully scalar is cheaper either way.
func TestScenario3NonConsecutiveLoadsNeverSeedAGatherPack(t *testing.T) {
	block := &ir.BasicBlock{Label: "entry"}

	for i := 0; i < 4; i++ {
		offset := i * 10 // stride 10: never consecutive under sequentialScev
		la := &ir.LoadInstruction{ID: i*10 + 1, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "a"}}
		la.Address = &ir.Value{ID: offset, Name: "a", Type: i32()}
		la.Result = &ir.Value{ID: i*10 + 2, Type: i32(), DefInst: la, DefBlock: block}

		lb := &ir.LoadInstruction{ID: i*10 + 3, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "b"}}
		lb.Address = &ir.Value{ID: offset, Name: "b", Type: i32()}
		lb.Result = &ir.Value{ID: i*10 + 4, Type: i32(), DefInst: lb, DefBlock: block}

		add := &ir.BinaryInstruction{ID: i*10 + 5, Block: block, Op: "add", Left: la.Result, Right: lb.Result}
		add.Result = &ir.Value{ID: i*10 + 6, Type: i32(), DefInst: add, DefBlock: block}

		block.Instructions = append(block.Instructions, la, lb, add)
	}
	block.Terminator = &ir.ReturnTerminator{ID: 999, Block: block}

	cfg := NewConfig(WithMCTS(false), WithEnumCap(4000))
	ops := []Operation{&BinaryOpOperation{Op: "add"}}
	packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, sequentialScev(), nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)
	assert.Equal(t, plan.VerifyCost(), plan.Cost())

	for _, pack := range plan.Packs() {
		assert.NotEqual(t, PackLoad, pack.Kind, "no load chain is consecutive, so no load pack should ever be seeded")
	}
}

// Scenario 4: a store that aliases between two otherwise-consecutive loads
// must break their independence, so no load pack spans across it.
func TestScenario4AliasingStoreBreaksTheLoadChain(t *testing.T) {
	block := &ir.BasicBlock{Label: "entry"}

	a0 := &ir.LoadInstruction{ID: 1, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "a"}}
	a0.Address = &ir.Value{ID: 0, Name: "a", Type: i32()}
	a0.Result = &ir.Value{ID: 2, Type: i32(), DefInst: a0, DefBlock: block}

	aliasingVal := &ir.Value{ID: 3, Type: i32()}
	st := &ir.StoreInstruction{ID: 4, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "a"}, Value: aliasingVal}
	st.Address = &ir.Value{ID: 50, Name: "a", Type: i32()}

	a1 := &ir.LoadInstruction{ID: 5, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "a"}}
	a1.Address = &ir.Value{ID: 1, Name: "a", Type: i32()}
	a1.Result = &ir.Value{ID: 6, Type: i32(), DefInst: a1, DefBlock: block}

	block.Instructions = []ir.Instruction{a0, st, a1}
	block.Terminator = &ir.ReturnTerminator{ID: 7, Block: block}

	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, RegionAliasOracle{})
	dag := NewConsecutiveAccessDAG([]ir.Instruction{a0, a1}, sequentialScev())
	independent := func(x, y ir.Instruction) bool {
		px, _ := index.InstructionPosition(x)
		py, _ := index.InstructionPosition(y)
		return lda.AreIndependent(px, py)
	}
	assert.Empty(t, dag.Chains(a0, 2, independent), "the aliasing store between a0 and a1 must reject the chain at seed enumeration")

	cfg := NewConfig(WithMCTS(false))
	packer := NewPacker(cfg, testCostModel{}, nil, nil, RegionAliasOracle{}, sequentialScev(), nil, nil)
	plan, err := packer.Optimize(block)
	assert.NoError(t, err)
	for _, pack := range plan.Packs() {
		assert.NotEqual(t, PackLoad, pack.Kind)
	}
}

// Scenario 5: a loop header with 4 parallel phis fed by isomorphic muls packs
// into one phi pack and one vector mul, cheaper than four of each scalar.
func TestScenario5PhiPackAndIsomorphicMulsPackTogether(t *testing.T) {
	block := &ir.BasicBlock{Label: "header"}
	preheader := &ir.BasicBlock{Label: "preheader"}
	f32 := &ir.ScalarType{Kind: ir.F32}

	muls := make([]*ir.BinaryInstruction, 4)
	var insts []ir.Instruction
	for i := 0; i < 4; i++ {
		left := &ir.Value{ID: 100 + i, Type: f32}
		right := &ir.Value{ID: 200 + i, Type: f32}
		m := &ir.BinaryInstruction{ID: 10 + i, Block: block, Op: "mul", Left: left, Right: right}
		m.Result = &ir.Value{ID: 20 + i, Type: f32, DefInst: m, DefBlock: block}
		muls[i] = m
		insts = append(insts, m)
	}

	phis := make([]*ir.PhiInstruction, 4)
	for i := 0; i < 4; i++ {
		init := &ir.Value{ID: 300 + i, Type: f32}
		p := &ir.PhiInstruction{ID: 30 + i, Block: block}
		p.Result = &ir.Value{ID: 40 + i, Type: f32, DefInst: p, DefBlock: block}
		p.Edges = []ir.PhiEdge{{Pred: preheader, Value: init}, {Pred: block, Value: muls[i].Result}}
		phis[i] = p
		insts = append(insts, p)
	}

	block.Instructions = insts
	block.Terminator = &ir.ReturnTerminator{ID: 99, Block: block}

	cfg := NewConfig(WithMCTS(false), WithEnumCap(4000))
	ops := []Operation{&BinaryOpOperation{Op: "mul"}}
	packer := NewPacker(cfg, testCostModel{}, nil, ops, RegionAliasOracle{}, nil, nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)

	var phiPacks, generalPacks int
	for _, pack := range plan.Packs() {
		switch pack.Kind {
		case PackPhi:
			phiPacks++
			assert.Len(t, pack.Phis, 4)
		case PackGeneral:
			generalPacks++
		}
	}
	assert.Equal(t, 1, phiPacks, "the loop's 4 phis should pack into exactly one phi pack")
	assert.GreaterOrEqual(t, generalPacks, 1, "the 4 isomorphic muls feeding the phis should pack too")

	const scalarSum = 8.0 // 4 phis + 4 muls, one unit each under testCostModel
	assert.Less(t, plan.Cost(), scalarSum)
}

// Scenario 6: a root with exactly one legal move (a single store pack, no
// scalarize actions and no other pack available) must short-circuit MCTS to
// one simulation regardless of num_simulations, yet still produce the plan
// that commits the pack.
func TestScenario6ForcedSingleMoveShortCircuitsMCTS(t *testing.T) {
	block := &ir.BasicBlock{Label: "entry"}

	v0 := &ir.Value{ID: 1, Type: i32()}
	v1 := &ir.Value{ID: 2, Type: i32()}
	st0 := &ir.StoreInstruction{ID: 3, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "c"}, Value: v0}
	st0.Address = &ir.Value{ID: 0, Name: "c", Type: i32()}
	st1 := &ir.StoreInstruction{ID: 4, Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "c"}, Value: v1}
	st1.Address = &ir.Value{ID: 1, Name: "c", Type: i32()}

	block.Instructions = []ir.Instruction{st0, st1}
	block.Terminator = &ir.ReturnTerminator{ID: 5, Block: block}

	index := NewValueIndex(block)
	ctx := NewVectorPackContext(index, testCostModel{})
	root := NewFrontier(ctx)
	rootNode := NewUCTNode(ctx, root, nil, 0, nil)
	assert.Empty(t, rootNode.untried, "no packs have been seeded into this bare context yet")

	cfg := NewConfig(WithMCTS(true), WithNumSimulations(5000))
	packer := NewPacker(cfg, testCostModel{}, nil, nil, RegionAliasOracle{}, sequentialScev(), nil, nil)

	plan, err := packer.Optimize(block)
	assert.NoError(t, err)
	assert.Len(t, plan.Packs(), 1, "the two stores are the only seedable pack and the only legal root move")
	assert.Equal(t, PackStore, plan.Packs()[0].Kind)
	assert.Equal(t, plan.VerifyCost(), plan.Cost())
}
