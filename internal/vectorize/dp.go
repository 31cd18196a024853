// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"fmt"
	"strings"
)

// dpResult is one memoized answer: the optimal cost to reach a terminal
// Frontier from the keyed state, and the action that achieves it.
type dpResult struct {
	cost   float64
	action Action
}

// DPSolver is the exhaustive alternative to UCTSearch: instead of sampling
// the search tree, it explores it fully, memoizing by Frontier state, and
// is guaranteed optimal for any block small enough to fit within its state
// budget. Past that budget it falls back to the Heuristic's estimate for
// the remainder of a branch, so it always terminates.
type DPSolver struct {
	ctx       *VectorPackContext
	heuristic *Heuristic
	memo      map[string]dpResult
	enumCap   int // max number of distinct Frontier states to explore exactly
	explored  int
}

// NewDPSolver builds a solver bound to ctx, willing to explore at most
// enumCap distinct Frontier states before falling back to the heuristic.
func NewDPSolver(ctx *VectorPackContext, enumCap int) *DPSolver {
	return &DPSolver{
		ctx:       ctx,
		heuristic: NewHeuristic(ctx),
		memo:      make(map[string]dpResult),
		enumCap:   enumCap,
	}
}

// frontierKey fingerprints a Frontier's state for memoization: the set of
// free positions plus the interned identity (by Seq) of its unresolved
// packs, which together fully determine the subtree rooted at that state.
func frontierKey(f *Frontier) string {
	var sb strings.Builder
	for _, pos := range f.Free().Elements() {
		fmt.Fprintf(&sb, "%d,", pos)
	}
	sb.WriteByte('|')
	for _, pack := range f.UnresolvedPacks() {
		fmt.Fprintf(&sb, "%d,", pack.Seq())
	}
	return sb.String()
}

// Solve returns the optimal (or, past enumCap, heuristic-estimated) cost to
// finish root, and the Plan of committed packs realizing it.
func (s *DPSolver) Solve(root *Frontier) (float64, *Plan) {
	cost, _ := s.solve(root)
	plan := NewPlan(s.ctx)
	s.replay(root, plan)
	return cost, plan
}

func (s *DPSolver) solve(f *Frontier) (float64, Action) {
	if f.Terminal() {
		return 0, nil
	}

	key := frontierKey(f)
	if r, ok := s.memo[key]; ok {
		return r.cost, r.action
	}

	if s.enumCap > 0 && s.explored >= s.enumCap {
		return s.remainderEstimate(f), nil
	}
	s.explored++

	bestCost := -1.0
	var bestAction Action
	for _, action := range candidateActions(s.ctx, f) {
		incCost, next := action.Apply(f)
		restCost, _ := s.solve(next)
		total := incCost + restCost
		if bestCost < 0 || total < bestCost {
			bestCost = total
			bestAction = action
		}
	}

	if bestAction == nil {
		// No legal moves but not terminal (shouldn't happen on a
		// well-formed block); charge the heuristic remainder rather than
		// loop forever.
		bestCost = s.remainderEstimate(f)
	}

	s.memo[key] = dpResult{cost: bestCost, action: bestAction}
	return bestCost, bestAction
}

func (s *DPSolver) remainderEstimate(f *Frontier) float64 {
	var total float64
	for _, pack := range f.UnresolvedPacks() {
		total += s.heuristic.Solve(pack)
	}
	for _, pos := range f.Free().Elements() {
		total += s.ctx.cost.ScalarCost(s.ctx.index.Instructions()[pos])
	}
	return total
}

// replay walks the memoized optimal path from f, adding every pack action
// to plan.
func (s *DPSolver) replay(f *Frontier, plan *Plan) {
	for !f.Terminal() {
		key := frontierKey(f)
		r, ok := s.memo[key]
		if !ok || r.action == nil {
			return
		}
		if pack := r.action.Pack(); pack != nil {
			plan.Add(pack)
		}
		_, next := r.action.Apply(f)
		f = next
	}
}
