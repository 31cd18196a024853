// SPDX-License-Identifier: Apache-2.0
package ir

// Optimization passes that run on the scalar IR before packing search begins.
// They exist to give the packer a clean substrate: folded constants, no dead
// values, no redundant pure computations. None of them know about vector
// packs; that's internal/vectorize's job.

import "fmt"

// OptimizationPass represents a single optimization transformation.
type OptimizationPass interface {
	Name() string
	Apply(fn *Function) bool // Returns true if changes were made
	Description() string
}

// OptimizationPipeline runs a sequence of passes, each once, in order.
type OptimizationPipeline struct {
	passes []OptimizationPass
}

// NewOptimizationPipeline builds the default pre-packing cleanup pipeline.
func NewOptimizationPipeline() *OptimizationPipeline {
	pipeline := &OptimizationPipeline{}
	pipeline.AddPass(&ConstantFolding{})
	pipeline.AddPass(&CommonSubexpressionElimination{})
	pipeline.AddPass(&DeadCodeElimination{})
	return pipeline
}

func (p *OptimizationPipeline) AddPass(pass OptimizationPass) {
	p.passes = append(p.passes, pass)
}

// Run executes all passes against fn, logging what changed.
func (p *OptimizationPipeline) Run(fn *Function) {
	for _, pass := range p.passes {
		changed := pass.Apply(fn)
		if changed {
			fmt.Printf("  %s: applied\n", pass.Name())
		}
	}
}

// ConstantFolding evaluates binary operations over known-constant operands.
type ConstantFolding struct{}

func (cf *ConstantFolding) Name() string { return "constant-folding" }
func (cf *ConstantFolding) Description() string {
	return "evaluates binary operations over compile-time constants"
}

func (cf *ConstantFolding) Apply(fn *Function) bool {
	changed := false
	constants := make(map[*Value]interface{})

	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			cf.recordConstant(inst, constants)
		}

		newInstructions := make([]Instruction, 0, len(block.Instructions))
		for _, inst := range block.Instructions {
			if bin, ok := inst.(*BinaryInstruction); ok {
				if folded := cf.fold(bin, constants); folded != nil {
					constants[bin.Result] = folded
					newInstructions = append(newInstructions, &ConstantInstruction{
						ID:     bin.ID,
						Result: bin.Result,
						Block:  bin.Block,
						Value:  folded,
						Type:   bin.Result.Type,
					})
					changed = true
					continue
				}
			}
			newInstructions = append(newInstructions, inst)
		}
		block.Instructions = newInstructions
	}

	return changed
}

func (cf *ConstantFolding) recordConstant(inst Instruction, constants map[*Value]interface{}) {
	if c, ok := inst.(*ConstantInstruction); ok {
		constants[c.Result] = c.Value
	}
}

func (cf *ConstantFolding) fold(b *BinaryInstruction, constants map[*Value]interface{}) interface{} {
	left, ok := constants[b.Left]
	if !ok {
		return nil
	}
	right, ok := constants[b.Right]
	if !ok {
		return nil
	}
	return evalBinary(b.Op, left, right)
}

func evalBinary(op string, left, right interface{}) interface{} {
	li, lok := toInt64(left)
	ri, rok := toInt64(right)
	if lok && rok {
		switch op {
		case "+":
			return li + ri
		case "-":
			return li - ri
		case "*":
			return li * ri
		case "/":
			if ri != 0 {
				return li / ri
			}
		case "%":
			if ri != 0 {
				return li % ri
			}
		case "==":
			return li == ri
		case "!=":
			return li != ri
		case "<":
			return li < ri
		case "<=":
			return li <= ri
		case ">":
			return li > ri
		case ">=":
			return li >= ri
		}
	}
	return nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

// DeadCodeElimination removes unreachable blocks and instructions whose
// results are never consumed.
type DeadCodeElimination struct{}

func (dce *DeadCodeElimination) Name() string { return "dead-code-elimination" }
func (dce *DeadCodeElimination) Description() string {
	return "removes unreachable blocks and unused pure instructions"
}

func (dce *DeadCodeElimination) Apply(fn *Function) bool {
	changed := dce.eliminateDeadBlocks(fn)
	if dce.eliminateDeadInstructions(fn) {
		changed = true
	}
	return changed
}

func (dce *DeadCodeElimination) eliminateDeadBlocks(fn *Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}

	reachable := make(map[*BasicBlock]bool)
	dce.markReachable(fn.Blocks[0], reachable)

	newBlocks := make([]*BasicBlock, 0, len(fn.Blocks))
	changed := false
	for _, block := range fn.Blocks {
		if reachable[block] {
			newBlocks = append(newBlocks, block)
		} else {
			changed = true
		}
	}
	if changed {
		fn.Blocks = newBlocks
	}
	return changed
}

func (dce *DeadCodeElimination) markReachable(block *BasicBlock, reachable map[*BasicBlock]bool) {
	if reachable[block] {
		return
	}
	reachable[block] = true
	if block.Terminator == nil {
		return
	}
	for _, succ := range block.Terminator.GetSuccessors() {
		if succ != nil {
			dce.markReachable(succ, reachable)
		}
	}
}

func (dce *DeadCodeElimination) eliminateDeadInstructions(fn *Function) bool {
	used := make(map[*Value]bool)
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			for _, op := range inst.GetOperands() {
				used[op] = true
			}
		}
		if block.Terminator != nil {
			for _, op := range block.Terminator.GetOperands() {
				used[op] = true
			}
		}
	}

	changed := false
	for _, block := range fn.Blocks {
		newInstructions := make([]Instruction, 0, len(block.Instructions))
		for _, inst := range block.Instructions {
			if dce.hasSideEffect(inst) || inst.GetResult() == nil || used[inst.GetResult()] {
				newInstructions = append(newInstructions, inst)
			} else {
				changed = true
			}
		}
		block.Instructions = newInstructions
	}
	return changed
}

func (dce *DeadCodeElimination) hasSideEffect(inst Instruction) bool {
	for _, eff := range inst.GetEffects() {
		if _, pure := eff.(*PureEffect); !pure {
			return true
		}
	}
	return false
}

// CommonSubexpressionElimination merges redundant pure computations within a
// basic block: two binary ops with the same opcode and operands, or two
// constants with the same value, collapse to the first one seen.
type CommonSubexpressionElimination struct{}

func (cse *CommonSubexpressionElimination) Name() string { return "common-subexpression-elimination" }
func (cse *CommonSubexpressionElimination) Description() string {
	return "collapses redundant pure computations within a basic block"
}

func (cse *CommonSubexpressionElimination) Apply(fn *Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		if cse.optimizeBlock(fn, block) {
			changed = true
		}
	}
	return changed
}

type cseKey struct {
	kind string
	a, b interface{}
}

func (cse *CommonSubexpressionElimination) optimizeBlock(fn *Function, block *BasicBlock) bool {
	changed := false
	seen := make(map[cseKey]*Value)
	newInstructions := make([]Instruction, 0, len(block.Instructions))

	for _, inst := range block.Instructions {
		key, ok := cse.keyOf(inst)
		if !ok {
			newInstructions = append(newInstructions, inst)
			continue
		}
		if existing, found := seen[key]; found {
			cse.replaceValue(fn, inst.GetResult(), existing)
			changed = true
			continue
		}
		seen[key] = inst.GetResult()
		newInstructions = append(newInstructions, inst)
	}

	if changed {
		block.Instructions = newInstructions
	}
	return changed
}

func (cse *CommonSubexpressionElimination) keyOf(inst Instruction) (cseKey, bool) {
	switch i := inst.(type) {
	case *BinaryInstruction:
		return cseKey{kind: "bin:" + i.Op, a: i.Left, b: i.Right}, true
	case *ConstantInstruction:
		return cseKey{kind: "const", a: i.Value}, true
	case *CallInstruction:
		if !i.Pure {
			return cseKey{}, false
		}
		return cseKey{kind: "call:" + i.Function, a: argsKey(i.Args)}, true
	default:
		return cseKey{}, false
	}
}

func argsKey(args []*Value) interface{} {
	key := make([]*Value, len(args))
	copy(key, args)
	return fmt.Sprint(key)
}

func (cse *CommonSubexpressionElimination) replaceValue(fn *Function, oldValue, newValue *Value) {
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			replaceOperand(inst, oldValue, newValue)
		}
		if block.Terminator != nil {
			replaceOperand(block.Terminator, oldValue, newValue)
		}
	}
}

// replaceOperand rewrites any operand of inst equal to oldValue to newValue.
func replaceOperand(inst Instruction, oldValue, newValue *Value) {
	switch i := inst.(type) {
	case *PhiInstruction:
		for j := range i.Edges {
			if i.Edges[j].Value == oldValue {
				i.Edges[j].Value = newValue
			}
		}
	case *LoadInstruction:
		if i.Address == oldValue {
			i.Address = newValue
		}
	case *StoreInstruction:
		if i.Address == oldValue {
			i.Address = newValue
		}
		if i.Value == oldValue {
			i.Value = newValue
		}
	case *BinaryInstruction:
		if i.Left == oldValue {
			i.Left = newValue
		}
		if i.Right == oldValue {
			i.Right = newValue
		}
	case *UnaryInstruction:
		if i.Operand == oldValue {
			i.Operand = newValue
		}
	case *CallInstruction:
		for j, arg := range i.Args {
			if arg == oldValue {
				i.Args[j] = newValue
			}
		}
	case *BranchTerminator:
		if i.Condition == oldValue {
			i.Condition = newValue
		}
	case *ReturnTerminator:
		if i.Value == oldValue {
			i.Value = newValue
		}
	}
}
