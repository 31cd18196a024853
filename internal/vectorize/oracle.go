// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// TargetFeatures is the per-function set of feature strings an InstBinding
// may require (e.g. "avx2", "neon"). A binding is only legal on a function
// when its RequiredFeatures are a subset of the function's features.
type TargetFeatures interface {
	Has(feature string) bool
}

// FeatureSet is a reference TargetFeatures backed by a plain string set,
// good enough for tests and the CLI's default target.
type FeatureSet map[string]struct{}

func NewFeatureSet(features ...string) FeatureSet {
	fs := make(FeatureSet, len(features))
	for _, f := range features {
		fs[f] = struct{}{}
	}
	return fs
}

func (fs FeatureSet) Has(feature string) bool {
	_, ok := fs[feature]
	return ok
}

// conflictingEffects reports whether a and b's memory effects could possibly
// touch the same region - same named region and at least one is a write.
func conflictingEffects(a, b ir.Instruction) bool {
	aw, aRegion, aMem := memEffect(a)
	bw, bRegion, bMem := memEffect(b)
	if !aMem || !bMem {
		return false
	}
	if !aw && !bw {
		return false
	}
	return aRegion == bRegion
}

func memEffect(inst ir.Instruction) (write bool, region string, ok bool) {
	for _, eff := range inst.GetEffects() {
		if m, isMem := eff.(*ir.MemoryEffect); isMem {
			return m.Kind == ir.MemoryEffectWrite, m.Region, true
		}
	}
	return false, "", false
}

// RegionAliasOracle is a reference AliasOracle that treats two memory
// instructions as aliasing whenever they touch the same named region and at
// least one of them writes - a conservative, region-granularity oracle
// suitable for tests and for inputs where addresses aren't modeled finely.
type RegionAliasOracle struct{}

func (RegionAliasOracle) MayAlias(a, b ir.Instruction) AliasResult {
	if conflictingEffects(a, b) {
		return MayAlias
	}
	return NoAlias
}

// StrideScalarEvolution is a reference ScalarEvolutionOracle recognizing
// consecutive accesses by a named-base + integer-offset decomposition of
// each address value, supplied by the caller as offsetOf (internal/asm puts
// the region in an address's Name and the offset in its ID).
type StrideScalarEvolution struct {
	offsetOf func(addr *ir.Value) (base string, offset int, ok bool)
}

// NewStrideScalarEvolution builds an oracle using the supplied address
// decomposition function.
func NewStrideScalarEvolution(offsetOf func(addr *ir.Value) (string, int, bool)) *StrideScalarEvolution {
	return &StrideScalarEvolution{offsetOf: offsetOf}
}

func (s *StrideScalarEvolution) IsConsecutive(a, b ir.Instruction) bool {
	addrA, okA := addressOf(a)
	addrB, okB := addressOf(b)
	if !okA || !okB {
		return false
	}
	baseA, offA, okA2 := s.offsetOf(addrA)
	baseB, offB, okB2 := s.offsetOf(addrB)
	if !okA2 || !okB2 {
		return false
	}
	return baseA == baseB && offB == offA+1
}

func addressOf(inst ir.Instruction) (*ir.Value, bool) {
	switch i := inst.(type) {
	case *ir.LoadInstruction:
		return i.Address, true
	case *ir.StoreInstruction:
		return i.Address, true
	default:
		return nil, false
	}
}
