// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// ShuffleKind distinguishes the micro-operations the cost model prices for
// moving values between lanes of a vector register.
type ShuffleKind int

const (
	ShuffleBroadcast ShuffleKind = iota
	ShufflePermute
	ShuffleGeneral
)

// VectorInstrOp distinguishes extract (vector lane -> scalar) from insert
// (scalar -> vector lane).
type VectorInstrOp int

const (
	VectorExtract VectorInstrOp = iota
	VectorInsert
)

// MemOpKind distinguishes load from store for memOpCost.
type MemOpKind int

const (
	MemOpLoad MemOpKind = iota
	MemOpStore
)

// UnknownCost is the sentinel the cost model returns when it cannot price an
// operation; the pack is rejected at canonicalization time (spec 7).
const UnknownCost = -1.0

// CostModel is the host-supplied, deterministic and pure cost oracle. The
// core never estimates cost itself; every number in a Plan traces back to
// one of these calls.
type CostModel interface {
	ArithCost(opcode string, vecType ir.Type) float64
	MemOpCost(kind MemOpKind, vecType ir.Type, align int) float64
	ShuffleCost(kind ShuffleKind, vecType ir.Type, index int) float64
	VectorInstrCost(op VectorInstrOp, vecType ir.Type, lane int) float64
	ScalarCost(inst ir.Instruction) float64
}

// IsUnknown reports whether a cost value is the sentinel "cost model doesn't
// know" answer.
func IsUnknown(cost float64) bool { return cost == UnknownCost }

// ReferenceCostModel is a simple, deterministic CostModel good enough to
// drive the CLI and daemon end to end without a target-specific model
// plugged in: it charges one unit per lane for arithmetic and memory ops
// and for permute/general shuffles, and one unit for a broadcast or an
// insert/extract regardless of lane count.
type ReferenceCostModel struct{}

func (ReferenceCostModel) ArithCost(opcode string, vecType ir.Type) float64 {
	return float64(vecType.Lanes())
}

func (ReferenceCostModel) MemOpCost(kind MemOpKind, vecType ir.Type, align int) float64 {
	return float64(vecType.Lanes())
}

func (ReferenceCostModel) ShuffleCost(kind ShuffleKind, vecType ir.Type, index int) float64 {
	if kind == ShuffleBroadcast {
		return 1
	}
	return float64(vecType.Lanes())
}

func (ReferenceCostModel) VectorInstrCost(op VectorInstrOp, vecType ir.Type, lane int) float64 {
	return 1
}

func (ReferenceCostModel) ScalarCost(inst ir.Instruction) float64 { return 1 }
