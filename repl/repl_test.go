// Package repl SPDX-License-Identifier: Apache-2.0
package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStart(t *testing.T) {
	t.Run("evaluates one function and quits", func(t *testing.T) {
		src := "fn f(a: i32, b: i32) {\nentry:\n  %x = load i32, a[0]\n  %y = load i32, b[0]\n  %s = add %x, %y\n  store i32, %s, c[0]\n  return\n}\n:q\n"
		in := strings.NewReader(src)
		var out bytes.Buffer

		Start(in, &out)

		assert.Contains(t, out.String(), "entry:")
	})

	t.Run("reports parse errors without crashing", func(t *testing.T) {
		in := strings.NewReader("fn broken(\n}\n:q\n")
		var out bytes.Buffer

		Start(in, &out)

		assert.Contains(t, out.String(), "error")
	})
}
