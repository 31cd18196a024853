// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// testCostModel is a deterministic, arithmetic-only cost model used across
// this package's tests: scalar ops cost 1, a vector op of width n costs n/2
// (rewarding packing), and shuffles/inserts/extracts each cost a fixed 1.
type testCostModel struct{}

func (testCostModel) ArithCost(opcode string, vecType ir.Type) float64 {
	return float64(vecType.Lanes()) / 2
}

func (testCostModel) MemOpCost(kind MemOpKind, vecType ir.Type, align int) float64 {
	return float64(vecType.Lanes()) / 2
}

func (testCostModel) ShuffleCost(kind ShuffleKind, vecType ir.Type, index int) float64 { return 1 }

func (testCostModel) VectorInstrCost(op VectorInstrOp, vecType ir.Type, lane int) float64 { return 1 }

func (testCostModel) ScalarCost(inst ir.Instruction) float64 { return 1 }

func i32() *ir.ScalarType { return &ir.ScalarType{Kind: ir.I32} }

// buildBlock constructs a straight-line block computing
// c[i] = a[i] + b[i] for i in 0..n, i.e. n independent load/load/add/store
// groups - the canonical SLP seed shape.
func buildBlock(n int) (*ir.Function, *ir.BasicBlock) {
	block := &ir.BasicBlock{Label: "entry"}
	fn := &ir.Function{Name: "saxpy", Blocks: []*ir.BasicBlock{block}}

	id := 0
	nextID := func() int { id++; return id }

	addrOf := func(region string, offset int) *ir.Value {
		return &ir.Value{ID: offset, Name: region, Type: i32()}
	}

	for i := 0; i < n; i++ {
		la := &ir.LoadInstruction{ID: nextID(), Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "a"}}
		la.Address = addrOf("a", i)
		la.Result = &ir.Value{ID: nextID(), Name: "", Type: i32(), DefInst: la, DefBlock: block}

		lb := &ir.LoadInstruction{ID: nextID(), Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "b"}}
		lb.Address = addrOf("b", i)
		lb.Result = &ir.Value{ID: nextID(), Name: "", Type: i32(), DefInst: lb, DefBlock: block}

		add := &ir.BinaryInstruction{ID: nextID(), Block: block, Op: "add", Left: la.Result, Right: lb.Result}
		add.Result = &ir.Value{ID: nextID(), Name: "", Type: i32(), DefInst: add, DefBlock: block}

		st := &ir.StoreInstruction{ID: nextID(), Block: block, ElemType: i32(), MemOrder: ir.MemoryOrder{Region: "c"}, Value: add.Result}
		st.Address = addrOf("c", i)

		block.Instructions = append(block.Instructions, la, lb, add, st)
	}
	block.Terminator = &ir.ReturnTerminator{ID: nextID(), Block: block}

	return fn, block
}

// sequentialScev decomposes an address value built by buildBlock into its
// region (the value's Name) and offset (the value's ID), so each region's
// i-th load/store is consecutive with its (i+1)-th. Tests that want
// consecutive-access seeding pass it to the packer explicitly.
func sequentialScev() *StrideScalarEvolution {
	return NewStrideScalarEvolution(func(addr *ir.Value) (string, int, bool) {
		return addr.Name, addr.ID, true
	})
}
