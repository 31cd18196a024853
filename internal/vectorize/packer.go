// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"github.com/tliron/commonlog"

	"superpack/internal/ir"
	"superpack/internal/train"
)

// Packer is the package's single external entry point: given a basic block,
// a cost model, and the target's operation catalog, it builds every
// supporting structure (ValueIndex, dependence analysis, pack context,
// candidate pack enumeration) and runs the configured search engine to
// produce a Plan.
type Packer struct {
	cfg      *Config
	cost     CostModel
	features TargetFeatures
	ops      []Operation

	alias AliasOracle
	scev  ScalarEvolutionOracle

	backend PolicyBackend
	logger  commonlog.Logger

	// Recorder receives one training Sample per MCTS decision along the
	// final path, for later policy training. Defaults to train.NopRecorder{}
	// until SetRecorder is called.
	Recorder train.Recorder
}

// SetRecorder attaches r as the destination for MCTS training samples
// produced by future calls to Optimize.
func (p *Packer) SetRecorder(r train.Recorder) { p.Recorder = r }

// NewPacker builds a Packer. alias and scev may be nil, in which case
// RegionAliasOracle and a no-op "never consecutive" oracle are used.
// backend may be nil to disable the learned policy entirely.
func NewPacker(cfg *Config, cost CostModel, features TargetFeatures, ops []Operation, alias AliasOracle, scev ScalarEvolutionOracle, backend PolicyBackend, logger commonlog.Logger) *Packer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if alias == nil {
		alias = RegionAliasOracle{}
	}
	if scev == nil {
		scev = neverConsecutive{}
	}
	return &Packer{
		cfg:      cfg,
		cost:     cost,
		features: features,
		ops:      ops,
		alias:    alias,
		scev:     scev,
		backend:  backend,
		logger:   logger,
		Recorder: train.NopRecorder{},
	}
}

type neverConsecutive struct{}

func (neverConsecutive) IsConsecutive(a, b ir.Instruction) bool { return false }

// Optimize runs the full pipeline over one basic block: index it, compute
// local dependence, enumerate seed packs (load/store chains, matched
// arithmetic groups, phi groups), then search for the cheapest
// non-overlapping cover. When cfg.UseMCTS is set, MCTS alone produces the
// plan; otherwise the exhaustive DP solver produces a baseline plan that
// RunBottomUp's local search then tries to improve further (spec 4.8,
// 4.12).
func (p *Packer) Optimize(block *ir.BasicBlock) (*Plan, error) {
	index := NewValueIndex(block)
	lda := NewLocalDependenceAnalysis(index, p.alias)
	ctx := NewVectorPackContext(index, p.cost)
	ctx.SetDependenceAnalysis(lda)

	p.seedLoadStorePacks(ctx, index, lda)
	p.seedGeneralPacks(ctx, index, lda)
	p.seedPhiPacks(ctx, index)

	root := NewFrontier(ctx)

	if p.logger != nil {
		p.logger.Debugf("packer: block %s has %d instructions, %d seed packs", block.Label, len(index.Instructions()), len(ctx.AllPacks()))
	}

	if p.cfg.UseMCTS {
		var policy *NeuralPackingPolicy
		if p.backend != nil {
			policy = NewNeuralPackingPolicy(p.backend, p.cfg.BatchSize, p.cfg.NumThreads, p.logger)
			defer policy.Cancel()
		}
		rollout := NewRolloutEvaluator(ctx, policy)
		search := NewUCTSearch(ctx, p.cfg, rollout, policy)
		if p.Recorder != nil {
			search.Recorder = p.Recorder
		}
		plan := search.Run(root)
		if policy != nil {
			policy.Flush()
		}
		return plan, nil
	}

	dp := NewDPSolver(ctx, p.cfg.EnumCap)
	_, plan := dp.Solve(root)
	plan = RunBottomUp(ctx, plan)
	return plan, nil
}

// seedLoadStorePacks enumerates consecutive load and store chains up to
// MaxNumLanes wide and interns a load/store pack for every chain of every
// width from 2 to MaxNumLanes, skipping any chain whose members aren't
// pairwise independent.
func (p *Packer) seedLoadStorePacks(ctx *VectorPackContext, index *ValueIndex, lda *LocalDependenceAnalysis) {
	var loads []ir.Instruction
	var stores []ir.Instruction
	for _, inst := range index.Instructions() {
		switch inst.(type) {
		case *ir.LoadInstruction:
			loads = append(loads, inst)
		case *ir.StoreInstruction:
			stores = append(stores, inst)
		}
	}

	independent := func(a, b ir.Instruction) bool {
		posA, okA := index.InstructionPosition(a)
		posB, okB := index.InstructionPosition(b)
		if !okA || !okB {
			return false
		}
		return lda.AreIndependent(posA, posB)
	}

	loadDAG := NewConsecutiveAccessDAG(loads, p.scev)
	for _, start := range loads {
		for width := 2; width <= p.cfg.MaxNumLanes; width++ {
			for _, chain := range loadDAG.Chains(start, width, independent) {
				p.internLoadChain(ctx, index, lda, chain)
			}
		}
	}

	storeDAG := NewConsecutiveAccessDAG(stores, p.scev)
	for _, start := range stores {
		for width := 2; width <= p.cfg.MaxNumLanes; width++ {
			for _, chain := range storeDAG.Chains(start, width, independent) {
				p.internStoreChain(ctx, index, lda, chain)
			}
		}
	}
}

func (p *Packer) internLoadChain(ctx *VectorPackContext, index *ValueIndex, lda *LocalDependenceAnalysis, chain []ir.Instruction) {
	loads := make([]*ir.LoadInstruction, len(chain))
	for i, inst := range chain {
		loads[i] = inst.(*ir.LoadInstruction)
	}
	elements := bitsetFromInsts(index, chain)
	depended := dependedUnion(index, lda, chain).Difference(elements)
	ctx.CreateLoadPack(loads, elements, depended)
}

func (p *Packer) internStoreChain(ctx *VectorPackContext, index *ValueIndex, lda *LocalDependenceAnalysis, chain []ir.Instruction) {
	stores := make([]*ir.StoreInstruction, len(chain))
	for i, inst := range chain {
		stores[i] = inst.(*ir.StoreInstruction)
	}
	elements := bitsetFromInsts(index, chain)
	depended := dependedUnion(index, lda, chain).Difference(elements)
	ctx.CreateStorePack(stores, elements, depended)
}

func dependedUnion(index *ValueIndex, lda *LocalDependenceAnalysis, insts []ir.Instruction) Bitset {
	out := NewBitset(index.Len())
	for _, inst := range insts {
		pos, ok := index.InstructionPosition(inst)
		if !ok {
			continue
		}
		out = out.Union(lda.Depended(pos))
	}
	return out
}

// seedGeneralPacks groups same-operation matches (e.g. every "add" in the
// block) into maximal runs of pairwise-independent instructions, up to
// MaxNumLanes wide, and interns a general pack per run and width.
func (p *Packer) seedGeneralPacks(ctx *VectorPackContext, index *ValueIndex, lda *LocalDependenceAnalysis) {
	mm := NewMatchManager(index, p.ops)

	for _, op := range p.ops {
		matches := mm.MatchesForOperation(op)
		if len(matches) < 2 {
			continue
		}

		var elemKind ir.ScalarKind
		if st, ok := matches[0].Output.Type.(*ir.ScalarType); ok {
			elemKind = st.Kind
		}

		for width := 2; width <= p.cfg.MaxNumLanes && width <= len(matches); width++ {
			lanes := make([]LaneBinding, width)
			for i := range lanes {
				lanes[i] = LaneBinding{Op: op}
			}
			binding := &InstBinding{Name: op.Name(), Lanes: lanes, ElemType: elemKind}
			if p.features != nil && !binding.SupportedBy(p.features) {
				continue
			}

			for _, group := range independentGroups(index, lda, matches, width) {
				elements := make([]ir.Instruction, len(group))
				for i, m := range group {
					elements[i] = m.Output.DefInst
				}
				elemBitset := bitsetFromInsts(index, elements)
				depended := dependedUnion(index, lda, elements).Difference(elemBitset)
				ctx.CreateVectorPack(group, elemBitset, depended, binding)
			}

			if isPartialPackWidth(width) {
				ctx.AddPartialTemplate(&PartialTemplate{
					Pack:       NewPartialGeneralPack(binding),
					Candidates: matches,
				})
			}
		}
	}
}

// partialPackWidths are the lane counts spec 4.9 step 2 names as feasible
// for a PartialPack template.
var partialPackWidths = []int{2, 4, 8, 16, 32}

func isPartialPackWidth(width int) bool {
	for _, w := range partialPackWidths {
		if w == width {
			return true
		}
	}
	return false
}

// independentGroups returns every maximal run of width pairwise-independent
// matches, scanning matches in program order so earlier instructions lead
// each group.
func independentGroups(index *ValueIndex, lda *LocalDependenceAnalysis, matches []Match, width int) [][]Match {
	var groups [][]Match
	for start := 0; start+width <= len(matches); start++ {
		group := matches[start : start+width]
		if allIndependent(index, lda, group) {
			groups = append(groups, group)
		}
	}
	return groups
}

func allIndependent(index *ValueIndex, lda *LocalDependenceAnalysis, group []Match) bool {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			posA, okA := index.InstructionPosition(group[i].Output.DefInst)
			posB, okB := index.InstructionPosition(group[j].Output.DefInst)
			if !okA || !okB || !lda.AreIndependent(posA, posB) {
				return false
			}
		}
	}
	return true
}

// seedPhiPacks groups the block's phis, in program order, into packs of up
// to MaxNumLanes each (a leftover single phi gets no pack), since phis carry
// no intra-block dependence of their own (their operands live in
// predecessor blocks).
func (p *Packer) seedPhiPacks(ctx *VectorPackContext, index *ValueIndex) {
	var phis []*ir.PhiInstruction
	for _, inst := range index.Instructions() {
		if phi, ok := inst.(*ir.PhiInstruction); ok {
			phis = append(phis, phi)
		}
	}
	for len(phis) >= 2 {
		width := p.cfg.MaxNumLanes
		if width > len(phis) {
			width = len(phis)
		}
		ctx.CreatePhiPack(phis[:width])
		phis = phis[width:]
	}
}
