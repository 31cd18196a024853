// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitsetSetClearCopyOnWrite(t *testing.T) {
	base := NewBitset(8)
	withBit := base.Set(3)

	assert.False(t, base.Test(3), "Set must not mutate the receiver")
	assert.True(t, withBit.Test(3))
	assert.Equal(t, 1, withBit.PopCount())

	cleared := withBit.Clear(3)
	assert.True(t, withBit.Test(3), "Clear must not mutate the receiver")
	assert.True(t, cleared.IsEmpty())
}

func TestBitsetSetOperations(t *testing.T) {
	a := NewBitset(8).Set(0).Set(1).Set(2)
	b := NewBitset(8).Set(1).Set(2).Set(3)

	t.Run("Union", func(t *testing.T) {
		u := a.Union(b)
		assert.Equal(t, 4, u.PopCount())
	})

	t.Run("Intersection", func(t *testing.T) {
		i := a.Intersection(b)
		assert.Equal(t, 2, i.PopCount())
		assert.True(t, i.Test(1) && i.Test(2))
	})

	t.Run("Difference", func(t *testing.T) {
		d := a.Difference(b)
		assert.Equal(t, 1, d.PopCount())
		assert.True(t, d.Test(0))
	})

	t.Run("Disjoint", func(t *testing.T) {
		assert.False(t, a.Disjoint(b))
		c := NewBitset(8).Set(4)
		assert.True(t, a.Disjoint(c))
	})

	t.Run("IsSubsetOf", func(t *testing.T) {
		sub := NewBitset(8).Set(1)
		assert.True(t, sub.IsSubsetOf(a))
		assert.False(t, a.IsSubsetOf(sub))
	})

	t.Run("Complement", func(t *testing.T) {
		comp := a.Complement(8)
		assert.True(t, a.Disjoint(comp))
		assert.Equal(t, 8, a.PopCount()+comp.PopCount())
	})
}

func TestBitsetElements(t *testing.T) {
	b := NewBitset(10).Set(2).Set(5).Set(9)
	assert.Equal(t, []int{2, 5, 9}, b.Elements())

	var seen []int
	b.ForEach(func(i int) { seen = append(seen, i) })
	assert.Equal(t, []int{2, 5, 9}, seen)
}
