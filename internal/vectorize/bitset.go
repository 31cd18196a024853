// SPDX-License-Identifier: Apache-2.0
package vectorize

import "github.com/bits-and-blooms/bitset"

// Bitset is a thin named wrapper around bits-and-blooms/bitset.BitSet giving
// the operations the spec's dependence algebra needs (Depended, Independent,
// Elements, Free, Usable, UnresolvedScalars all share this representation).
// Every mutation returns a fresh clone so Frontier's copy-on-write semantics
// hold without callers having to remember to clone first.
type Bitset struct {
	bits *bitset.BitSet
}

// NewBitset returns an empty Bitset sized for n elements.
func NewBitset(n int) Bitset {
	return Bitset{bits: bitset.New(uint(n))}
}

// Clone returns an independent copy.
func (b Bitset) Clone() Bitset {
	return Bitset{bits: b.bits.Clone()}
}

func (b Bitset) Set(i int) Bitset {
	c := b.Clone()
	c.bits.Set(uint(i))
	return c
}

func (b Bitset) Clear(i int) Bitset {
	c := b.Clone()
	c.bits.Clear(uint(i))
	return c
}

// SetInPlace mutates b directly; used only during construction, before a
// Bitset is shared, to avoid paying the clone cost per bit.
func (b Bitset) SetInPlace(i int) { b.bits.Set(uint(i)) }

func (b Bitset) ClearInPlace(i int) { b.bits.Clear(uint(i)) }

func (b Bitset) Test(i int) bool { return b.bits.Test(uint(i)) }

func (b Bitset) PopCount() int { return int(b.bits.Count()) }

func (b Bitset) IsEmpty() bool { return b.bits.None() }

func (b Bitset) Union(other Bitset) Bitset {
	return Bitset{bits: b.bits.Union(other.bits)}
}

func (b Bitset) Intersection(other Bitset) Bitset {
	return Bitset{bits: b.bits.Intersection(other.bits)}
}

// Difference returns b \ other.
func (b Bitset) Difference(other Bitset) Bitset {
	return Bitset{bits: b.bits.Difference(other.bits)}
}

// Complement returns ~b within a universe of size n.
func (b Bitset) Complement(n int) Bitset {
	full := bitset.New(uint(n)).Complement()
	return Bitset{bits: full.Difference(b.bits)}
}

// IsSubsetOf reports whether every set bit of b is also set in other.
func (b Bitset) IsSubsetOf(other Bitset) bool {
	return b.bits.Difference(other.bits).None()
}

// Disjoint reports whether b and other share no set bit.
func (b Bitset) Disjoint(other Bitset) bool {
	return b.bits.Intersection(other.bits).None()
}

func (b Bitset) Equal(other Bitset) bool {
	return b.bits.Equal(other.bits)
}

// Elements returns the set bits in ascending order.
func (b Bitset) Elements() []int {
	elems := make([]int, 0, b.bits.Count())
	for i, e := b.bits.NextSet(0); e; i, e = b.bits.NextSet(i + 1) {
		elems = append(elems, int(i))
	}
	return elems
}

// ForEach calls f for every set bit in ascending order.
func (b Bitset) ForEach(f func(i int)) {
	for i, e := b.bits.NextSet(0); e; i, e = b.bits.NextSet(i + 1) {
		f(int(i))
	}
}
