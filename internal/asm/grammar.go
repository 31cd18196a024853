// SPDX-License-Identifier: Apache-2.0
package asm

// Program is the root of a parsed .vpasm source: zero or more function
// definitions.
type Program struct {
	Functions []*FunctionDecl `@@*`
}

// FunctionDecl declares one scalar function: a name, its parameters, and
// the basic blocks making up its body.
type FunctionDecl struct {
	Name   string       `"fn" @Ident "("`
	Params []*ParamDecl  `(@@ ("," @@)*)? ")" "{"`
	Blocks []*BlockDecl  `@@* "}"`
}

// ParamDecl is one function parameter: a name and its scalar type.
type ParamDecl struct {
	Name string `@Ident ":"`
	Type string `@Ident`
}

// BlockDecl is a labeled sequence of instructions with no internal
// branches, terminated by exactly one terminator instruction.
type BlockDecl struct {
	Label        string          `@Ident ":"`
	Instructions []*InstrDecl    `@@*`
}

// InstrDecl is one instruction line. Exactly one of the alternative fields
// is populated; which one is decided by the leading keyword, mirroring how
// the teacher grammar dispatches Statement alternatives.
type InstrDecl struct {
	Load   *LoadDecl   `(  @@`
	Store  *StoreDecl  ` | @@`
	Binary *BinaryDecl ` | @@`
	Unary  *UnaryDecl  ` | @@`
	Call   *CallDecl   ` | @@`
	Const  *ConstDecl  ` | @@`
	Phi    *PhiDecl    ` | @@`
	Return *ReturnDecl ` | @@`
	Branch *BranchDecl ` | @@`
	Jump   *JumpDecl   ` | @@ )`
}

// AddrDecl is a memory operand: a named region plus a constant integer
// offset, written "region[offset]".
type AddrDecl struct {
	Region string `@Ident "["`
	Offset int    `@Integer "]"`
}

// LoadDecl: "%dst = load <type>, region[offset]"
type LoadDecl struct {
	Dst  string    `"%" @Ident "=" "load" `
	Type string    `@Ident ","`
	Addr *AddrDecl `@@`
}

// StoreDecl: "store <type>, %src, region[offset]"
type StoreDecl struct {
	Type string    `"store" @Ident ","`
	Src  string    `"%" @Ident ","`
	Addr *AddrDecl `@@`
}

// BinaryDecl: "%dst = <op> %left, %right"
type BinaryDecl struct {
	Dst   string `"%" @Ident "="`
	Op    string `@Ident`
	Left  string `"%" @Ident ","`
	Right string `"%" @Ident`
}

// UnaryDecl: "%dst = neg %operand" (or any other recognized unary mnemonic)
type UnaryDecl struct {
	Dst     string `"%" @Ident "="`
	Op      string `@Ident`
	Operand string `"%" @Ident`
}

// CallDecl: "%dst = call name(%a, %b)" - Pure is inferred by the lowering
// pass from a caller-supplied allowlist, since purity isn't syntax.
type CallDecl struct {
	Dst      string   `"%" @Ident "="`
	Function string   `"call" @Ident "("`
	Args     []string `("%" @Ident ("," "%" @Ident)*)? ")"`
}

// ConstDecl: "%dst = const <type> <value>"
type ConstDecl struct {
	Dst   string `"%" @Ident "="`
	Type  string `"const" @Ident`
	Value string `(@Integer | @Float)`
}

// PhiEdgeDecl is one "[ %value, label ]" incoming edge of a phi.
type PhiEdgeDecl struct {
	Value string `"[" "%" @Ident ","`
	Pred  string `@Ident "]"`
}

// PhiDecl: "%dst = phi [ %a, entry ], [ %b, loop ]"
type PhiDecl struct {
	Dst   string         `"%" @Ident "=" "phi"`
	Edges []*PhiEdgeDecl `@@ ("," @@)*`
}

// ReturnDecl: "return" or "return %value"
type ReturnDecl struct {
	Value string `"return" ("%" @Ident)?`
}

// BranchDecl: "br %cond, trueLabel, falseLabel"
type BranchDecl struct {
	Cond  string `"br" "%" @Ident ","`
	True  string `@Ident ","`
	False string `@Ident`
}

// JumpDecl: "jmp label"
type JumpDecl struct {
	Target string `"jmp" @Ident`
}
