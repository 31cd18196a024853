// SPDX-License-Identifier: Apache-2.0
package vectorize

import "superpack/internal/ir"

// ScalarEvolutionOracle answers whether two scalar memory accesses address
// adjacent elements - the host's address analysis, consumed opaquely.
type ScalarEvolutionOracle interface {
	IsConsecutive(a, b ir.Instruction) bool
}

// ConsecutiveAccessDAG is a directed graph over a block's memory-access
// instructions: an edge A -> B exists iff B addresses exactly one scalar
// element past A. It is built once per block, once for loads and once for
// stores.
type ConsecutiveAccessDAG struct {
	successors map[ir.Instruction][]ir.Instruction
}

func accessElemType(inst ir.Instruction) (ir.Type, bool) {
	switch i := inst.(type) {
	case *ir.LoadInstruction:
		return i.ElemType, true
	case *ir.StoreInstruction:
		return i.ElemType, true
	default:
		return nil, false
	}
}

// NewConsecutiveAccessDAG builds the DAG over accesses, a slice of memory
// instructions of a single kind (all loads, or all stores) from one block.
// Construction is quadratic in len(accesses), matching the spec.
func NewConsecutiveAccessDAG(accesses []ir.Instruction, oracle ScalarEvolutionOracle) *ConsecutiveAccessDAG {
	dag := &ConsecutiveAccessDAG{successors: make(map[ir.Instruction][]ir.Instruction)}

	seen := make(map[[2]ir.Instruction]bool)
	for _, a := range accesses {
		aType, aOk := accessElemType(a)
		if !aOk || aType.Lanes() != 1 {
			continue
		}
		for _, b := range accesses {
			if a == b {
				continue
			}
			bType, bOk := accessElemType(b)
			if !bOk || bType.Lanes() != 1 {
				continue
			}
			if aType.String() != bType.String() {
				continue
			}
			if !oracle.IsConsecutive(a, b) {
				continue
			}
			key := [2]ir.Instruction{a, b}
			if seen[key] {
				continue
			}
			seen[key] = true
			dag.successors[a] = append(dag.successors[a], b)
		}
	}

	return dag
}

// Successors returns the accesses immediately following inst in address
// order, per the oracle.
func (d *ConsecutiveAccessDAG) Successors(inst ir.Instruction) []ir.Instruction {
	return d.successors[inst]
}

// Chains enumerates every maximal simple chain reachable from start of
// exactly length n, depth-first, filtering by the independent predicate
// supplied by the caller (typically LDA pairwise independence). Used by
// seed enumeration (spec 4.6).
func (d *ConsecutiveAccessDAG) Chains(start ir.Instruction, n int, independent func(a, b ir.Instruction) bool) [][]ir.Instruction {
	var results [][]ir.Instruction
	var walk func(chain []ir.Instruction)
	walk = func(chain []ir.Instruction) {
		if len(chain) == n {
			cp := make([]ir.Instruction, n)
			copy(cp, chain)
			results = append(results, cp)
			return
		}
		last := chain[len(chain)-1]
		for _, next := range d.successors[last] {
			ok := true
			for _, prior := range chain {
				if !independent(prior, next) {
					ok = false
					break
				}
			}
			if ok {
				walk(append(chain, next))
			}
		}
	}
	walk([]ir.Instruction{start})
	return results
}
