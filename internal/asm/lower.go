// SPDX-License-Identifier: Apache-2.0
package asm

import (
	"fmt"

	supererrors "superpack/internal/errors"
	"superpack/internal/ir"
)

// Lower converts a parsed .vpasm Program into the scalar IR the packer
// operates on. pureFunctions names the call targets that carry no memory
// effect (math intrinsics and the like) - everything else lowers to an
// impure CallInstruction that fences the dependence analysis.
func Lower(prog *Program, pureFunctions map[string]bool) ([]*ir.Function, error) {
	var out []*ir.Function
	for _, fnDecl := range prog.Functions {
		fn, err := lowerFunction(fnDecl, pureFunctions)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	return out, nil
}

func scalarType(name string) (*ir.ScalarType, error) {
	switch ir.ScalarKind(name) {
	case ir.I8, ir.I16, ir.I32, ir.I64, ir.F32, ir.F64:
		return &ir.ScalarType{Kind: ir.ScalarKind(name)}, nil
	default:
		return nil, fmt.Errorf("%s: unknown scalar type %q", supererrors.ErrorSyntaxInvalidType, name)
	}
}

type lowerCtx struct {
	blocksByID map[string]*ir.BasicBlock
	values     map[string]*ir.Value
	pure       map[string]bool
	nextID     int
}

func (c *lowerCtx) id() int {
	c.nextID++
	return c.nextID
}

func lowerFunction(decl *FunctionDecl, pureFunctions map[string]bool) (*ir.Function, error) {
	fn := &ir.Function{Name: decl.Name, LocalVars: make(map[string]*ir.Value)}
	c := &lowerCtx{
		blocksByID: make(map[string]*ir.BasicBlock),
		values:     make(map[string]*ir.Value),
		pure:       pureFunctions,
	}

	for _, p := range decl.Params {
		t, err := scalarType(p.Type)
		if err != nil {
			return nil, err
		}
		v := &ir.Value{ID: c.id(), Name: p.Name, Type: t}
		param := &ir.Parameter{Name: p.Name, Type: t, Value: v}
		fn.Params = append(fn.Params, param)
		c.values[p.Name] = v
	}

	for _, b := range decl.Blocks {
		block := &ir.BasicBlock{Label: b.Label}
		fn.Blocks = append(fn.Blocks, block)
		c.blocksByID[b.Label] = block
	}

	// Pass 1: register every instruction's destination value up front so
	// forward references (phi back-edges, mutually referencing blocks)
	// resolve in pass 2 regardless of textual order.
	for bi, b := range decl.Blocks {
		block := fn.Blocks[bi]
		for _, instr := range b.Instructions {
			if err := c.registerDst(instr, block); err != nil {
				return nil, err
			}
		}
	}

	// Pass 2: build the actual instruction objects, resolving operands by
	// name against the values registered in pass 1.
	for bi, b := range decl.Blocks {
		block := fn.Blocks[bi]
		for _, instr := range b.Instructions {
			if err := c.lowerInstr(instr, block); err != nil {
				return nil, err
			}
		}
		if block.Terminator == nil {
			return nil, fmt.Errorf("%s: block %q has no terminator", supererrors.ErrorSyntaxUnexpectedToken, b.Label)
		}
	}

	wireCFG(fn)
	return fn, nil
}

func wireCFG(fn *ir.Function) {
	link := func(from, to *ir.BasicBlock) {
		if from == nil || to == nil {
			return
		}
		from.Successors = append(from.Successors, to)
		to.Predecessors = append(to.Predecessors, from)
	}
	for _, b := range fn.Blocks {
		for _, succ := range b.Terminator.GetSuccessors() {
			link(b, succ)
		}
	}
}

func (c *lowerCtx) lookupValue(name string) (*ir.Value, error) {
	v, ok := c.values[name]
	if !ok {
		return nil, fmt.Errorf("%s: value %%%s is never defined", supererrors.ErrorSyntaxUndefinedValue, name)
	}
	return v, nil
}

func (c *lowerCtx) registerDst(instr *InstrDecl, block *ir.BasicBlock) error {
	var name string
	var typeName string
	switch {
	case instr.Load != nil:
		name, typeName = instr.Load.Dst, instr.Load.Type
	case instr.Binary != nil:
		name = instr.Binary.Dst
	case instr.Unary != nil:
		name = instr.Unary.Dst
	case instr.Call != nil:
		name = instr.Call.Dst
	case instr.Const != nil:
		name, typeName = instr.Const.Dst, instr.Const.Type
	case instr.Phi != nil:
		name = instr.Phi.Dst
	default:
		return nil // store/return/branch/jump produce no value
	}
	if name == "" {
		return nil
	}
	if _, exists := c.values[name]; exists {
		return fmt.Errorf("%s: value %%%s redefined", supererrors.ErrorSyntaxDuplicateLabel, name)
	}
	var t ir.Type
	if typeName != "" {
		st, err := scalarType(typeName)
		if err != nil {
			return err
		}
		t = st
	}
	v := &ir.Value{ID: c.id(), Name: name, Type: t, DefBlock: block}
	c.values[name] = v
	return nil
}

func (c *lowerCtx) addr(a *AddrDecl, elemType ir.Type) *ir.Value {
	return &ir.Value{ID: a.Offset, Name: a.Region, Type: elemType}
}

func (c *lowerCtx) lowerInstr(instr *InstrDecl, block *ir.BasicBlock) error {
	switch {
	case instr.Load != nil:
		d := instr.Load
		elemType, err := scalarType(d.Type)
		if err != nil {
			return err
		}
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		inst := &ir.LoadInstruction{
			ID:       c.id(),
			Result:   result,
			Block:    block,
			Address:  c.addr(d.Addr, elemType),
			ElemType: elemType,
			MemOrder: ir.MemoryOrder{Region: d.Addr.Region},
		}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Store != nil:
		d := instr.Store
		elemType, err := scalarType(d.Type)
		if err != nil {
			return err
		}
		val, err := c.lookupValue(d.Src)
		if err != nil {
			return err
		}
		inst := &ir.StoreInstruction{
			ID:       c.id(),
			Block:    block,
			Address:  c.addr(d.Addr, elemType),
			Value:    val,
			ElemType: elemType,
			MemOrder: ir.MemoryOrder{Region: d.Addr.Region},
		}
		block.Instructions = append(block.Instructions, inst)

	case instr.Binary != nil:
		d := instr.Binary
		left, err := c.lookupValue(d.Left)
		if err != nil {
			return err
		}
		right, err := c.lookupValue(d.Right)
		if err != nil {
			return err
		}
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		result.Type = left.Type
		inst := &ir.BinaryInstruction{ID: c.id(), Result: result, Block: block, Op: d.Op, Left: left, Right: right}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Unary != nil:
		d := instr.Unary
		operand, err := c.lookupValue(d.Operand)
		if err != nil {
			return err
		}
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		result.Type = operand.Type
		inst := &ir.UnaryInstruction{ID: c.id(), Result: result, Block: block, Op: d.Op, Operand: operand}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Call != nil:
		d := instr.Call
		args := make([]*ir.Value, len(d.Args))
		for i, a := range d.Args {
			v, err := c.lookupValue(a)
			if err != nil {
				return err
			}
			args[i] = v
		}
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		inst := &ir.CallInstruction{ID: c.id(), Result: result, Block: block, Function: d.Function, Args: args, Pure: c.pure[d.Function]}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Const != nil:
		d := instr.Const
		t, err := scalarType(d.Type)
		if err != nil {
			return err
		}
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		inst := &ir.ConstantInstruction{ID: c.id(), Result: result, Block: block, Value: d.Value, Type: t}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Phi != nil:
		d := instr.Phi
		result, err := c.lookupValue(d.Dst)
		if err != nil {
			return err
		}
		inst := &ir.PhiInstruction{ID: c.id(), Result: result, Block: block}
		for _, e := range d.Edges {
			pred, ok := c.blocksByID[e.Pred]
			if !ok {
				return fmt.Errorf("%s: phi references undefined block %q", supererrors.ErrorSyntaxUndefinedValue, e.Pred)
			}
			v, err := c.lookupValue(e.Value)
			if err != nil {
				return err
			}
			inst.Edges = append(inst.Edges, ir.PhiEdge{Pred: pred, Value: v})
		}
		result.DefInst = inst
		block.Instructions = append(block.Instructions, inst)

	case instr.Return != nil:
		d := instr.Return
		var v *ir.Value
		if d.Value != "" {
			var err error
			v, err = c.lookupValue(d.Value)
			if err != nil {
				return err
			}
		}
		block.Terminator = &ir.ReturnTerminator{ID: c.id(), Block: block, Value: v}

	case instr.Branch != nil:
		d := instr.Branch
		cond, err := c.lookupValue(d.Cond)
		if err != nil {
			return err
		}
		trueBlock, ok := c.blocksByID[d.True]
		if !ok {
			return fmt.Errorf("%s: branch references undefined block %q", supererrors.ErrorSyntaxUndefinedValue, d.True)
		}
		falseBlock, ok := c.blocksByID[d.False]
		if !ok {
			return fmt.Errorf("%s: branch references undefined block %q", supererrors.ErrorSyntaxUndefinedValue, d.False)
		}
		block.Terminator = &ir.BranchTerminator{ID: c.id(), Block: block, Condition: cond, TrueBlock: trueBlock, FalseBlock: falseBlock}

	case instr.Jump != nil:
		d := instr.Jump
		target, ok := c.blocksByID[d.Target]
		if !ok {
			return fmt.Errorf("%s: jmp references undefined block %q", supererrors.ErrorSyntaxUndefinedValue, d.Target)
		}
		block.Terminator = &ir.JumpTerminator{ID: c.id(), Block: block, Target: target}

	default:
		supererrors.Unreachable("instruction decl with no populated alternative")
	}
	return nil
}
