// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// IR types and structures for the scalar SSA substrate the vectorizer packs.
// Instructions live in basic blocks, blocks live in functions, each value has
// exactly one definition, and every instruction reports its memory effects so
// the dependence analysis can build bitsets without inspecting opcodes.

// Function represents a single scalar function the packer operates on.
type Function struct {
	Name      string
	Params    []*Parameter
	Blocks    []*BasicBlock
	LocalVars map[string]*Value
}

// Parameter represents a function parameter.
type Parameter struct {
	Name  string
	Type  Type
	Value *Value
}

// BasicBlock represents a sequence of instructions with no internal branches.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	Terminator   Terminator
	Predecessors []*BasicBlock
	Successors   []*BasicBlock
}

// AllInstructions returns the block's instructions followed by its terminator,
// in program order. The packer indexes instructions by position within this
// slice, so callers must not reorder it behind the block's back.
func (b *BasicBlock) AllInstructions() []Instruction {
	all := make([]Instruction, len(b.Instructions), len(b.Instructions)+1)
	copy(all, b.Instructions)
	if b.Terminator != nil {
		all = append(all, b.Terminator)
	}
	return all
}

// Value represents a definition in SSA form.
type Value struct {
	ID       int
	Name     string
	Type     Type
	DefInst  Instruction
	DefBlock *BasicBlock
}

func (v *Value) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("%%%d", v.ID)
}

// Instruction is the common shape every scalar operation implements.
type Instruction interface {
	GetID() int
	GetResult() *Value
	GetOperands() []*Value
	GetBlock() *BasicBlock
	IsTerminator() bool
	GetEffects() []Effect
	String() string
}

// Terminator ends a basic block and names its successors.
type Terminator interface {
	Instruction
	GetSuccessors() []*BasicBlock
}

// Effect describes how an instruction touches memory, used by the dependence
// analysis to decide whether two memory instructions may be reordered.
type Effect interface {
	EffectKind() string
}

// MemoryEffectKind distinguishes loads from stores.
type MemoryEffectKind string

const (
	MemoryEffectRead  MemoryEffectKind = "read"
	MemoryEffectWrite MemoryEffectKind = "write"
)

// MemoryEffect marks an instruction as touching a named memory region.
// Region is the symbolic base the instruction addresses into; instructions
// with different regions never alias.
type MemoryEffect struct {
	Kind   MemoryEffectKind
	Region string
}

func (m *MemoryEffect) EffectKind() string { return "memory" }

// PureEffect marks an instruction as having no memory side effects at all,
// which lets the dependence analysis skip it entirely when building the
// memory conflict graph.
type PureEffect struct{}

func (p *PureEffect) EffectKind() string { return "pure" }

// PhiEdge is one incoming value of a phi node, keyed by predecessor block.
// Unlike a map, a slice of edges has a stable iteration order, which matters
// because operand packs are built by zipping phi operands lane-for-lane.
type PhiEdge struct {
	Pred  *BasicBlock
	Value *Value
}

type PhiInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Edges  []PhiEdge
}

func (p *PhiInstruction) GetID() int        { return p.ID }
func (p *PhiInstruction) GetResult() *Value { return p.Result }
func (p *PhiInstruction) GetOperands() []*Value {
	ops := make([]*Value, len(p.Edges))
	for i, e := range p.Edges {
		ops[i] = e.Value
	}
	return ops
}
func (p *PhiInstruction) GetBlock() *BasicBlock { return p.Block }
func (p *PhiInstruction) IsTerminator() bool    { return false }
func (p *PhiInstruction) GetEffects() []Effect  { return []Effect{&PureEffect{}} }
func (p *PhiInstruction) String() string {
	s := fmt.Sprintf("%s = phi", p.Result)
	for _, e := range p.Edges {
		s += fmt.Sprintf(" [%s, %s]", e.Value, e.Pred.Label)
	}
	return s
}

// MemoryOrder tags a Load/Store with the region it addresses, independent of
// the address value itself, so that aliasing can be decided statically when
// the oracle can't resolve the addresses.
type MemoryOrder struct {
	Region string
}

type LoadInstruction struct {
	ID       int
	Result   *Value
	Block    *BasicBlock
	Address  *Value
	ElemType Type
	MemOrder MemoryOrder
}

func (l *LoadInstruction) GetID() int            { return l.ID }
func (l *LoadInstruction) GetResult() *Value     { return l.Result }
func (l *LoadInstruction) GetOperands() []*Value { return []*Value{l.Address} }
func (l *LoadInstruction) GetBlock() *BasicBlock { return l.Block }
func (l *LoadInstruction) IsTerminator() bool    { return false }
func (l *LoadInstruction) GetEffects() []Effect {
	return []Effect{&MemoryEffect{Kind: MemoryEffectRead, Region: l.MemOrder.Region}}
}
func (l *LoadInstruction) String() string {
	return fmt.Sprintf("%s = load %s, %s", l.Result, l.ElemType, l.Address)
}

type StoreInstruction struct {
	ID       int
	Block    *BasicBlock
	Address  *Value
	Value    *Value
	ElemType Type
	MemOrder MemoryOrder
}

func (s *StoreInstruction) GetID() int            { return s.ID }
func (s *StoreInstruction) GetResult() *Value     { return nil }
func (s *StoreInstruction) GetOperands() []*Value { return []*Value{s.Address, s.Value} }
func (s *StoreInstruction) GetBlock() *BasicBlock { return s.Block }
func (s *StoreInstruction) IsTerminator() bool    { return false }
func (s *StoreInstruction) GetEffects() []Effect {
	return []Effect{&MemoryEffect{Kind: MemoryEffectWrite, Region: s.MemOrder.Region}}
}
func (s *StoreInstruction) String() string {
	return fmt.Sprintf("store %s, %s, %s", s.ElemType, s.Value, s.Address)
}

type BinaryInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Op     string
	Left   *Value
	Right  *Value
}

func (b *BinaryInstruction) GetID() int            { return b.ID }
func (b *BinaryInstruction) GetResult() *Value     { return b.Result }
func (b *BinaryInstruction) GetOperands() []*Value { return []*Value{b.Left, b.Right} }
func (b *BinaryInstruction) GetBlock() *BasicBlock { return b.Block }
func (b *BinaryInstruction) IsTerminator() bool    { return false }
func (b *BinaryInstruction) GetEffects() []Effect  { return []Effect{&PureEffect{}} }
func (b *BinaryInstruction) String() string {
	return fmt.Sprintf("%s = %s %s, %s", b.Result, b.Op, b.Left, b.Right)
}

type UnaryInstruction struct {
	ID      int
	Result  *Value
	Block   *BasicBlock
	Op      string
	Operand *Value
}

func (u *UnaryInstruction) GetID() int            { return u.ID }
func (u *UnaryInstruction) GetResult() *Value     { return u.Result }
func (u *UnaryInstruction) GetOperands() []*Value { return []*Value{u.Operand} }
func (u *UnaryInstruction) GetBlock() *BasicBlock { return u.Block }
func (u *UnaryInstruction) IsTerminator() bool    { return false }
func (u *UnaryInstruction) GetEffects() []Effect  { return []Effect{&PureEffect{}} }
func (u *UnaryInstruction) String() string {
	return fmt.Sprintf("%s = %s %s", u.Result, u.Op, u.Operand)
}

// CallInstruction calls a named function. Pure calls (math intrinsics and
// the like) may still be packed across lanes; impure calls act as a fence
// the dependence analysis refuses to reorder past.
type CallInstruction struct {
	ID       int
	Result   *Value
	Block    *BasicBlock
	Function string
	Args     []*Value
	Pure     bool
}

func (c *CallInstruction) GetID() int            { return c.ID }
func (c *CallInstruction) GetResult() *Value     { return c.Result }
func (c *CallInstruction) GetOperands() []*Value { return c.Args }
func (c *CallInstruction) GetBlock() *BasicBlock { return c.Block }
func (c *CallInstruction) IsTerminator() bool    { return false }
func (c *CallInstruction) GetEffects() []Effect {
	if c.Pure {
		return []Effect{&PureEffect{}}
	}
	return []Effect{&MemoryEffect{Kind: MemoryEffectWrite, Region: "call:" + c.Function}}
}
func (c *CallInstruction) String() string {
	s := fmt.Sprintf("%s = call %s(", c.Result, c.Function)
	for i, a := range c.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

type ConstantInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Value  interface{}
	Type   Type
}

func (c *ConstantInstruction) GetID() int            { return c.ID }
func (c *ConstantInstruction) GetResult() *Value     { return c.Result }
func (c *ConstantInstruction) GetOperands() []*Value { return nil }
func (c *ConstantInstruction) GetBlock() *BasicBlock { return c.Block }
func (c *ConstantInstruction) IsTerminator() bool    { return false }
func (c *ConstantInstruction) GetEffects() []Effect  { return []Effect{&PureEffect{}} }
func (c *ConstantInstruction) String() string {
	return fmt.Sprintf("%s = const %s %v", c.Result, c.Type, c.Value)
}

// Terminators

type ReturnTerminator struct {
	ID    int
	Block *BasicBlock
	Value *Value
}

func (r *ReturnTerminator) GetID() int        { return r.ID }
func (r *ReturnTerminator) GetResult() *Value { return nil }
func (r *ReturnTerminator) GetOperands() []*Value {
	if r.Value != nil {
		return []*Value{r.Value}
	}
	return nil
}
func (r *ReturnTerminator) GetBlock() *BasicBlock        { return r.Block }
func (r *ReturnTerminator) IsTerminator() bool           { return true }
func (r *ReturnTerminator) GetSuccessors() []*BasicBlock { return nil }
func (r *ReturnTerminator) GetEffects() []Effect         { return []Effect{&PureEffect{}} }
func (r *ReturnTerminator) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", r.Value)
}

type BranchTerminator struct {
	ID         int
	Block      *BasicBlock
	Condition  *Value
	TrueBlock  *BasicBlock
	FalseBlock *BasicBlock
}

func (b *BranchTerminator) GetID() int            { return b.ID }
func (b *BranchTerminator) GetResult() *Value     { return nil }
func (b *BranchTerminator) GetOperands() []*Value { return []*Value{b.Condition} }
func (b *BranchTerminator) GetBlock() *BasicBlock { return b.Block }
func (b *BranchTerminator) IsTerminator() bool    { return true }
func (b *BranchTerminator) GetSuccessors() []*BasicBlock {
	return []*BasicBlock{b.TrueBlock, b.FalseBlock}
}
func (b *BranchTerminator) GetEffects() []Effect { return []Effect{&PureEffect{}} }
func (b *BranchTerminator) String() string {
	return fmt.Sprintf("br %s, %s, %s", b.Condition, b.TrueBlock.Label, b.FalseBlock.Label)
}

type JumpTerminator struct {
	ID     int
	Block  *BasicBlock
	Target *BasicBlock
}

func (j *JumpTerminator) GetID() int                   { return j.ID }
func (j *JumpTerminator) GetResult() *Value            { return nil }
func (j *JumpTerminator) GetOperands() []*Value        { return nil }
func (j *JumpTerminator) GetBlock() *BasicBlock        { return j.Block }
func (j *JumpTerminator) IsTerminator() bool           { return true }
func (j *JumpTerminator) GetSuccessors() []*BasicBlock { return []*BasicBlock{j.Target} }
func (j *JumpTerminator) GetEffects() []Effect         { return []Effect{&PureEffect{}} }
func (j *JumpTerminator) String() string               { return fmt.Sprintf("jmp %s", j.Target.Label) }

// Types

// Type is implemented by both scalar and vector (packed) types. Lanes lets
// generic code ask "how many scalar elements does this type carry" without
// a type switch: 1 for scalars, N for an N-lane vector.
type Type interface {
	String() string
	Lanes() int
}

// ScalarKind enumerates the scalar element kinds the vectorizer understands.
type ScalarKind string

const (
	I8  ScalarKind = "i8"
	I16 ScalarKind = "i16"
	I32 ScalarKind = "i32"
	I64 ScalarKind = "i64"
	F32 ScalarKind = "f32"
	F64 ScalarKind = "f64"
)

// IsFloat reports whether the kind is a floating point kind, which the cost
// model and legality checks use to reject integer/float pack mixing.
func (k ScalarKind) IsFloat() bool { return k == F32 || k == F64 }

// Bits returns the element's bit width, used to size packs against the
// target's vector register width.
func (k ScalarKind) Bits() int {
	switch k {
	case I8:
		return 8
	case I16:
		return 16
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	default:
		return 0
	}
}

type ScalarType struct {
	Kind ScalarKind
}

func (s *ScalarType) String() string { return string(s.Kind) }
func (s *ScalarType) Lanes() int     { return 1 }

// VectorType is a packed type carrying NumLanes elements of Elem each. The
// packer never invents VectorType values during search; it only uses them
// to describe the shape of a committed pack's result for the cost model and
// printer.
type VectorType struct {
	Elem     ScalarKind
	NumLanes int
}

func (v *VectorType) String() string { return fmt.Sprintf("<%d x %s>", v.NumLanes, v.Elem) }
func (v *VectorType) Lanes() int     { return v.NumLanes }
