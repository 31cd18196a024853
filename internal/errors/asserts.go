package errors

import "fmt"

// Assert panics with a formatted message if cond is false. Use it for
// invariants this package's callers guarantee structurally (a non-nil
// context, a canonicalized operand pack, a terminated block) - conditions
// that indicate a bug in this module, not bad input.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf("assertion failed: "+format, args...))
	}
}

// Unreachable panics, for switch/type-switch default cases that should be
// provably impossible given the type system.
func Unreachable(format string, args ...interface{}) {
	panic(fmt.Errorf("unreachable: "+format, args...))
}
