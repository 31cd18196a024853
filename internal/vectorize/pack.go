// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"fmt"
	"sort"

	"superpack/internal/ir"
)

// OperandPack is an ordered sequence of scalar values that must be
// materialized as a single vector register to feed some VectorPack. A nil
// slot is a "don't-care" lane. OperandPacks are canonicalized by
// VectorPackContext - identical sequences share one interned pointer, so
// pointer equality is value equality everywhere else in this package.
type OperandPack struct {
	Values   []*ir.Value
	elemKind ir.ScalarKind
	vecType  *ir.VectorType
	seq      int // intern order, used as OperandPack's canonical sort key
}

// VectorType lazily computes and caches the pack's vector type, inferring
// the element kind from the first non-nil lane with a scalar type. An
// all-don't-care pack falls back to elemKind, which no constructor in this
// package sets, so its element kind is the zero ScalarKind.
func (op *OperandPack) VectorType() *ir.VectorType {
	if op.vecType != nil {
		return op.vecType
	}
	kind := op.elemKind
	for _, v := range op.Values {
		if v != nil {
			if st, ok := v.Type.(*ir.ScalarType); ok {
				kind = st.Kind
				break
			}
		}
	}
	op.vecType = &ir.VectorType{Elem: kind, NumLanes: len(op.Values)}
	return op.vecType
}

// Len is the pack's lane count.
func (op *OperandPack) Len() int { return len(op.Values) }

// Seq is the pack's intern order, used to keep Frontier.unresolvedPacks in a
// stable, canonical-pointer-equivalent sort order.
func (op *OperandPack) Seq() int { return op.seq }

// IsSplat reports whether every non-nil lane holds the same value.
func (op *OperandPack) IsSplat() bool {
	var first *ir.Value
	found := false
	for _, v := range op.Values {
		if v == nil {
			continue
		}
		if !found {
			first = v
			found = true
			continue
		}
		if v != first {
			return false
		}
	}
	return found
}

// key returns a string uniquely identifying op's sequence of value pointers,
// used by VectorPackContext to intern identical sequences.
func (op *OperandPack) key() string {
	s := ""
	for _, v := range op.Values {
		s += fmt.Sprintf("%p,", v)
	}
	return s
}

func (op *OperandPack) String() string {
	parts := make([]string, len(op.Values))
	for i, v := range op.Values {
		if v == nil {
			parts[i] = "_"
		} else {
			parts[i] = v.String()
		}
	}
	return "<" + fmt.Sprint(parts) + ">"
}

// PackKind tags a VectorPack's variant; packs are dispatched over this tag
// rather than a subclass hierarchy, so each variant owns only the fields it
// needs.
type PackKind int

const (
	PackLoad PackKind = iota
	PackStore
	PackPhi
	PackGeneral
)

func (k PackKind) String() string {
	switch k {
	case PackLoad:
		return "load"
	case PackStore:
		return "store"
	case PackPhi:
		return "phi"
	case PackGeneral:
		return "general"
	default:
		return "unknown"
	}
}

// VectorPack is a group of scalar values chosen to be computed as one SIMD
// instruction. It is immutable after creation; construction is the
// responsibility of VectorPackContext, which also computes its cost.
type VectorPack struct {
	Kind PackKind

	Loads   []*ir.LoadInstruction  // PackLoad: nil entries are don't-care lanes
	Stores  []*ir.StoreInstruction // PackStore
	Phis    []*ir.PhiInstruction   // PackPhi
	Binding *InstBinding           // PackGeneral
	Matches []Match                // PackGeneral: one per lane

	Elements Bitset
	Depended Bitset

	Cost          float64
	ProducingCost float64

	OperandPacks  []*OperandPack
	OrderedValues []*ir.Value
}

// VectorType reports the pack's result vector shape, used to price extract
// and gather operations against it.
func (vp *VectorPack) VectorType() *ir.VectorType {
	lanes := len(vp.OrderedValues)
	if vp.Kind == PackStore {
		lanes = len(vp.Stores)
	}
	var kind ir.ScalarKind
	switch vp.Kind {
	case PackLoad:
		for _, l := range vp.Loads {
			if l != nil {
				if st, ok := l.ElemType.(*ir.ScalarType); ok {
					kind = st.Kind
					break
				}
			}
		}
	case PackStore:
		for _, s := range vp.Stores {
			if s != nil {
				if st, ok := s.ElemType.(*ir.ScalarType); ok {
					kind = st.Kind
					break
				}
			}
		}
	case PackGeneral:
		kind = vp.Binding.ElemType
	case PackPhi:
		for _, v := range vp.OrderedValues {
			if v != nil {
				if st, ok := v.Type.(*ir.ScalarType); ok {
					kind = st.Kind
					break
				}
			}
		}
	}
	return &ir.VectorType{Elem: kind, NumLanes: lanes}
}

func (vp *VectorPack) String() string {
	return fmt.Sprintf("%s pack (%d lanes, cost %.2f)", vp.Kind, len(vp.OrderedValues), vp.Cost)
}

// replacedInstructions returns every instruction this pack subsumes: its
// ordered values' defining instructions plus, for General packs, every
// intermediate instruction the match touched.
func (vp *VectorPack) replacedInstructions() []ir.Instruction {
	seen := make(map[ir.Instruction]bool)
	var out []ir.Instruction
	add := func(inst ir.Instruction) {
		if inst == nil || seen[inst] {
			return
		}
		seen[inst] = true
		out = append(out, inst)
	}

	switch vp.Kind {
	case PackLoad:
		for _, l := range vp.Loads {
			if l != nil {
				add(l)
			}
		}
	case PackStore:
		for _, s := range vp.Stores {
			if s != nil {
				add(s)
			}
		}
	case PackPhi:
		for _, p := range vp.Phis {
			if p != nil {
				add(p)
			}
		}
	case PackGeneral:
		for _, m := range vp.Matches {
			if m.Output != nil && m.Output.DefInst != nil {
				add(m.Output.DefInst)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	return out
}
