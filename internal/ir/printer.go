// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Function back to a readable textual form, used for
// debug output.
type Printer struct {
	sb     strings.Builder
	indent int
}

func NewPrinter() *Printer {
	return &Printer{}
}

// Print renders fn to its textual IR form.
func Print(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.sb.String()
}

func (p *Printer) writeIndent() {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.sb.WriteString(fmt.Sprintf(format, args...))
	p.sb.WriteString("\n")
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", param.Name, param.Type)
	}
	p.writeLine("fn %s(%s) {", fn.Name, strings.Join(params, ", "))
	p.indent++
	for _, block := range fn.Blocks {
		p.printBasicBlock(block)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBasicBlock(block *BasicBlock) {
	p.writeLine("%s:", block.Label)
	p.indent++
	for _, inst := range block.Instructions {
		p.writeLine("%s", p.instructionString(inst))
	}
	if block.Terminator != nil {
		p.writeLine("%s", p.instructionString(block.Terminator))
	}
	p.indent--
}

// instructionString renders one instruction using its own String(), with the
// memory effects appended as a trailing comment for memory operations -
// useful when eyeballing why the dependence analysis serialized two ops.
func (p *Printer) instructionString(inst Instruction) string {
	base := inst.String()
	effects := inst.GetEffects()
	if len(effects) == 1 {
		if _, pure := effects[0].(*PureEffect); pure {
			return base
		}
	}
	return base + "  ; " + p.formatEffects(effects)
}

func (p *Printer) formatEffects(effects []Effect) string {
	parts := make([]string, len(effects))
	for i, e := range effects {
		switch eff := e.(type) {
		case *MemoryEffect:
			parts[i] = fmt.Sprintf("%s(%s)", eff.Kind, eff.Region)
		case *PureEffect:
			parts[i] = "pure"
		default:
			parts[i] = e.EffectKind()
		}
	}
	return strings.Join(parts, ", ")
}

func (f *Function) String() string { return Print(f) }

func (b *BasicBlock) String() string { return "block " + b.Label }
