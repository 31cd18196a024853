// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"fmt"
	"math"

	"superpack/internal/ir"
	"superpack/internal/train"
)

// Action is one edge out of a Frontier in the search tree: either
// scalarizing one instruction or committing one already-interned VectorPack.
type Action interface {
	Apply(f *Frontier) (float64, *Frontier)
	Pack() *VectorPack // nil for a scalarize action
}

type scalarAction struct{ inst ir.Instruction }

func (a scalarAction) Apply(f *Frontier) (float64, *Frontier) { return f.AdvanceScalar(a.inst) }
func (a scalarAction) Pack() *VectorPack                      { return nil }

type packAction struct{ pack *VectorPack }

func (a packAction) Apply(f *Frontier) (float64, *Frontier) { return f.AdvancePack(a.pack) }
func (a packAction) Pack() *VectorPack                      { return a.pack }

// partialStepAction marks a node that is mid-construction of a PartialPack:
// it owns the same Frontier as its parent (nothing has been committed yet),
// and contributes no pack to the final Plan on its own.
type partialStepAction struct{}

func (partialStepAction) Apply(f *Frontier) (float64, *Frontier) { return 0, f }
func (partialStepAction) Pack() *VectorPack                      { return nil }

// candidateActions enumerates every legal move from f: scalarizing any
// usable instruction, or committing any interned pack whose elements are
// still entirely free.
func candidateActions(ctx *VectorPackContext, f *Frontier) []Action {
	var actions []Action
	for _, pos := range f.Usable().Elements() {
		actions = append(actions, scalarAction{inst: ctx.index.Instructions()[pos]})
	}
	for _, pack := range ctx.AllPacks() {
		if pack.Elements.IsSubsetOf(f.Free()) {
			actions = append(actions, packAction{pack: pack})
		}
	}
	return actions
}

// availableTemplates returns every PartialTemplate registered on ctx that
// has at least one lane filler still usable against f - the "one child per
// PartialPack template of each feasible lane count" half of spec 4.9 step 2.
func availableTemplates(ctx *VectorPackContext, f *Frontier) []*PartialTemplate {
	var out []*PartialTemplate
	for _, tmpl := range ctx.PartialTemplates() {
		if len(feasibleCandidates(ctx, f, tmpl.Pack, tmpl.Candidates)) > 0 {
			out = append(out, tmpl)
		}
	}
	return out
}

// feasibleCandidates filters pool down to the matches that could still fill
// pp's next open lane: not already used by another lane, still free in f,
// and independent (per ctx's LDA) of every lane already pinned. This is the
// backtracking feasibility test spec 4.9 step 2 calls for.
func feasibleCandidates(ctx *VectorPackContext, f *Frontier, pp *PartialPack, pool []Match) []Match {
	used := make(map[ir.Instruction]bool)
	for i := 0; i < pp.Width(); i++ {
		if inst := pp.LaneAt(i); inst != nil {
			used[inst] = true
		}
	}

	var out []Match
	for _, m := range pool {
		inst := m.Output.DefInst
		if used[inst] {
			continue
		}
		pos, ok := ctx.index.InstructionPosition(inst)
		if !ok || !f.Free().Test(pos) {
			continue
		}
		if independentOfLanes(ctx, pp, inst) {
			out = append(out, m)
		}
	}
	return out
}

// independentOfLanes reports whether inst is pairwise independent of every
// lane already pinned in pp, per ctx's dependence analysis.
func independentOfLanes(ctx *VectorPackContext, pp *PartialPack, inst ir.Instruction) bool {
	if ctx.lda == nil {
		return true
	}
	pos, ok := ctx.index.InstructionPosition(inst)
	if !ok {
		return false
	}
	for i := 0; i < pp.Width(); i++ {
		other := pp.LaneAt(i)
		if other == nil {
			continue
		}
		otherPos, ok := ctx.index.InstructionPosition(other)
		if !ok || !ctx.lda.AreIndependent(pos, otherPos) {
			return false
		}
	}
	return true
}

// UCTNode is one node of the Monte Carlo search tree: a Frontier reached by
// some Action from its parent, together with UCT statistics accumulated
// across simulations.
type UCTNode struct {
	frontier *Frontier
	parent   *UCTNode
	action   Action  // action that produced this node from parent; nil at root
	incCost  float64 // incremental cost paid by action

	children         []*UCTNode
	untried          []Action
	untriedTemplates []*PartialTemplate

	// partial is non-nil while this node is mid-construction of a new pack:
	// the node owns the same Frontier as its parent, and partialUntried
	// lists the matches still usable for the pack's next open lane.
	partial        *PartialPack
	partialPool    []Match // the owning template's full candidate pool
	partialUntried []Match

	visits     int
	totalValue float64 // accumulated -cost (higher is better) across rollouts
}

// NewUCTNode wraps frontier as a tree node, lazily listing its untried
// actions and PartialPack templates from ctx.
func NewUCTNode(ctx *VectorPackContext, frontier *Frontier, action Action, incCost float64, parent *UCTNode) *UCTNode {
	return &UCTNode{
		frontier:         frontier,
		parent:           parent,
		action:           action,
		incCost:          incCost,
		untried:          candidateActions(ctx, frontier),
		untriedTemplates: availableTemplates(ctx, frontier),
	}
}

// newPartialUCTNode starts a node mid-construction of pack, having just
// pinned one more lane than parent's own partial (or none, for a template's
// first lane). Its frontier is unchanged until the pack completes.
func newPartialUCTNode(ctx *VectorPackContext, parent *UCTNode, partial *PartialPack, pool []Match) *UCTNode {
	return &UCTNode{
		frontier:       parent.frontier,
		parent:         parent,
		action:         partialStepAction{},
		partial:        partial,
		partialPool:    pool,
		partialUntried: feasibleCandidates(ctx, parent.frontier, partial, pool),
	}
}

// FullyExpanded reports whether every candidate action (or, mid-partial,
// every lane filler) from this node has a child already.
func (n *UCTNode) FullyExpanded() bool {
	if n.partial != nil {
		return len(n.partialUntried) == 0
	}
	return len(n.untried) == 0 && len(n.untriedTemplates) == 0
}

// ucb1 is the UCT selection score from spec 4.9 step 1: mean value, plus an
// exploration bonus scaled by c and the parent/child visit ratio, plus a
// prior-weighted term scaled by w and this child's policy prior.
func (n *UCTNode) ucb1(c, w, prior float64) float64 {
	if n.visits == 0 {
		return math.Inf(1)
	}
	mean := n.totalValue / float64(n.visits)
	exploration := c * math.Sqrt(math.Log(float64(n.parent.visits))/float64(n.visits))
	priorTerm := w * prior / float64(n.visits+1)
	return mean + exploration + priorTerm
}

// selectChild picks the child maximizing ucb1, using s's policy (if any) to
// bias the prior term.
func (n *UCTNode) selectChild(s *UCTSearch) *UCTNode {
	priors := s.priorsFor(n)
	var best *UCTNode
	bestScore := math.Inf(-1)
	for _, child := range n.children {
		score := child.ucb1(s.c, s.w, priors[child])
		if score > bestScore {
			bestScore = score
			best = child
		}
	}
	return best
}

// expand grows the tree by one node: either the next untried discrete
// action, the next untried PartialPack template, or the next lane filler of
// a PartialPack already under construction.
func (n *UCTNode) expand(ctx *VectorPackContext) *UCTNode {
	if n.partial != nil {
		return n.expandPartial(ctx)
	}
	if len(n.untriedTemplates) > 0 {
		tmpl := n.untriedTemplates[len(n.untriedTemplates)-1]
		n.untriedTemplates = n.untriedTemplates[:len(n.untriedTemplates)-1]
		child := newPartialUCTNode(ctx, n, tmpl.Pack, tmpl.Candidates)
		n.children = append(n.children, child)
		return child
	}
	action := n.untried[len(n.untried)-1]
	n.untried = n.untried[:len(n.untried)-1]
	cost, next := action.Apply(n.frontier)
	child := NewUCTNode(ctx, next, action, cost, n)
	n.children = append(n.children, child)
	return child
}

// expandPartial pins the partial pack's next open lane to one untried
// match. If that completes the pack, the child owns a new Frontier advanced
// by the finished pack (spec 4.9 step 2); otherwise it continues growing
// the same partial one lane further.
func (n *UCTNode) expandPartial(ctx *VectorPackContext) *UCTNode {
	m := n.partialUntried[len(n.partialUntried)-1]
	n.partialUntried = n.partialUntried[:len(n.partialUntried)-1]

	lane := n.partial.OpenLane()
	grown := n.partial.WithMatch(lane, m)

	var child *UCTNode
	if grown.IsComplete() {
		if vp, ok := grown.Finalize(ctx, ctx.lda); ok && vp != nil {
			cost, next := n.frontier.AdvancePack(vp)
			child = NewUCTNode(ctx, next, packAction{pack: vp}, cost, n)
		} else {
			// The finished pack was rejected (e.g. unknown cost); this
			// branch is a dead end with no further children.
			child = &UCTNode{frontier: n.frontier, parent: n, action: partialStepAction{}}
		}
	} else {
		child = newPartialUCTNode(ctx, n, grown, n.partialPool)
	}
	n.children = append(n.children, child)
	return child
}

func (n *UCTNode) backpropagate(value float64) {
	for node := n; node != nil; node = node.parent {
		node.visits++
		node.totalValue += value
	}
}

// UCTSearch drives Monte Carlo Tree Search over a block's Frontier space,
// per the engine described in spec 4.9: selection descends by UCB1 to a
// non-fully-expanded node, expansion adds one child, a rollout evaluator
// estimates the leaf's remaining cost, and the result backpropagates up the
// visited path.
type UCTSearch struct {
	ctx            *VectorPackContext
	c              float64 // UCT exploration constant
	w              float64 // prior weight multiplier
	expandAfter    int     // visits a leaf needs before it is expanded
	numSimulations int
	rollout        *RolloutEvaluator
	policy         *NeuralPackingPolicy // nil when no learned policy is attached

	// Recorder receives one Sample per decision along the final robust-child
	// path, for offline policy training. Defaults to train.NopRecorder{}.
	Recorder train.Recorder
}

// NewUCTSearch builds a search bound to ctx, using cfg's tuning constants
// and rollout as the leaf-value estimator. policy may be nil, in which case
// selection falls back to a uniform prior.
func NewUCTSearch(ctx *VectorPackContext, cfg *Config, rollout *RolloutEvaluator, policy *NeuralPackingPolicy) *UCTSearch {
	return &UCTSearch{
		ctx:            ctx,
		c:              cfg.ExplorationConstant,
		w:              cfg.RolloutWeight,
		expandAfter:    cfg.ExpandAfter,
		numSimulations: cfg.NumSimulations,
		rollout:        rollout,
		policy:         policy,
		Recorder:       train.NopRecorder{},
	}
}

// priorsFor returns node's children's policy priors for use in ucb1's
// W*prior term (spec 4.9/4.11). Falls back to a uniform prior when no
// policy is attached, the policy declines to answer, or no child commits a
// pack (PackPriors only scores pack candidates).
func (s *UCTSearch) priorsFor(node *UCTNode) map[*UCTNode]float64 {
	priors := make(map[*UCTNode]float64, len(node.children))
	if len(node.children) == 0 {
		return priors
	}
	uniform := 1.0 / float64(len(node.children))
	for _, c := range node.children {
		priors[c] = uniform
	}
	if s.policy == nil {
		return priors
	}

	var candidates []*VectorPack
	childByPack := make(map[*VectorPack]*UCTNode)
	for _, c := range node.children {
		if pack := c.action.Pack(); pack != nil {
			candidates = append(candidates, pack)
			childByPack[pack] = c
		}
	}
	if len(candidates) == 0 {
		return priors
	}

	weights, ok := s.policy.PackPriors(node.frontier, candidates)
	if !ok {
		return priors
	}
	for pack, weight := range weights {
		if c, found := childByPack[pack]; found {
			priors[c] = weight
		}
	}
	return priors
}

// Run executes numSimulations MCTS simulations from root and returns the
// plan implied by the most-visited child at every level (the standard
// "robust child" final move selection), replaying every pack action chosen
// along that path into a fresh Plan. When root has exactly one possible
// child, Run short-circuits to a single iteration regardless of
// numSimulations (spec 4.9's forced-move case).
func (s *UCTSearch) Run(root *Frontier) *Plan {
	rootNode := NewUCTNode(s.ctx, root, nil, 0, nil)

	iterations := s.numSimulations
	if len(rootNode.untried)+len(rootNode.untriedTemplates) == 1 {
		iterations = 1
	}

	for sim := 0; sim < iterations; sim++ {
		s.simulate(rootNode)
	}

	plan := NewPlan(s.ctx)
	node := rootNode
	for !node.frontier.Terminal() {
		var next *UCTNode
		if len(node.children) == 0 {
			break
		}
		best := -1
		for i, child := range node.children {
			if best < 0 || child.visits > node.children[best].visits {
				best = i
			}
		}
		next = node.children[best]
		if pack := next.action.Pack(); pack != nil {
			plan.Add(pack)
		}
		s.recordDecision(node, best)
		node = next
	}
	return plan
}

// recordDecision logs the robust-child choice made at node as a training
// Sample: the candidate packs considered, which index won, and the
// incremental cost and win rate of the choice.
func (s *UCTSearch) recordDecision(node *UCTNode, chosen int) {
	if s.Recorder == nil {
		return
	}
	candidates := make([]string, len(node.children))
	for i, child := range node.children {
		if pack := child.action.Pack(); pack != nil {
			candidates[i] = fmt.Sprintf("pack@%p", pack)
		} else {
			candidates[i] = "scalarize"
		}
	}
	chosenChild := node.children[chosen]
	var value float64
	if chosenChild.visits > 0 {
		value = chosenChild.totalValue / float64(chosenChild.visits)
	}
	s.Recorder.Record(train.Sample{
		FrontierKey:  frontierKey(node.frontier),
		CandidateIDs: candidates,
		Chosen:       chosen,
		Cost:         chosenChild.incCost,
		Value:        value,
	})
}

// simulate runs one selection/expansion/rollout/backpropagation cycle
// starting at node.
func (s *UCTSearch) simulate(node *UCTNode) {
	path := []*UCTNode{node}
	current := node
	for !current.frontier.Terminal() && current.FullyExpanded() && len(current.children) > 0 {
		current = current.selectChild(s)
		path = append(path, current)
	}

	var leafCost float64
	if !current.frontier.Terminal() && !current.FullyExpanded() && current.visits >= s.expandAfter {
		current = current.expand(s.ctx)
		path = append(path, current)
	}

	leafCost = s.rollout.Evaluate(current.frontier)

	// Value is negative total cost (path cost so far plus estimated
	// remainder), so higher is better for UCB1's mean-maximization.
	var pathCost float64
	for _, n := range path {
		pathCost += n.incCost
	}
	value := -(pathCost + leafCost)
	current.backpropagate(value)
}
