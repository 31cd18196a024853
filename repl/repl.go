// Package repl SPDX-License-Identifier: Apache-2.0
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"superpack/internal/asm"
	"superpack/internal/vectorize"
)

const PROMPT = "vpasm> "

// Start runs an interactive loop reading .vpasm function definitions off in
// and printing the resulting packer Plan to out. A function definition ends
// when its closing "}" is read; ":q" quits.
func Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	packer := vectorize.NewPacker(nil, vectorize.ReferenceCostModel{}, nil, vectorize.DefaultOperations(), nil, nil, nil, nil)

	for {
		fmt.Fprint(out, PROMPT)
		var buf strings.Builder
		depth := 0
		started := false

		for scanner.Scan() {
			line := scanner.Text()
			if buf.Len() == 0 && strings.TrimSpace(line) == ":q" {
				return
			}
			buf.WriteString(line)
			buf.WriteString("\n")
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if strings.Contains(line, "{") {
				started = true
			}
			if started && depth <= 0 {
				break
			}
		}
		if buf.Len() == 0 {
			return // EOF with nothing typed
		}

		evalSource(out, packer, buf.String())
	}
}

func evalSource(out io.Writer, packer *vectorize.Packer, source string) {
	program, err := asm.ParseSource("<repl>", source)
	if err != nil {
		fmt.Fprintf(out, "parse error: %s\n", err)
		return
	}

	fns, err := asm.Lower(program, nil)
	if err != nil {
		fmt.Fprintf(out, "lowering error: %s\n", err)
		return
	}

	for _, fn := range fns {
		for _, block := range fn.Blocks {
			plan, err := packer.Optimize(block)
			if err != nil {
				fmt.Fprintf(out, "packer error on %s/%s: %s\n", fn.Name, block.Label, err)
				continue
			}
			fmt.Fprintf(out, "%s/%s: %d packs, cost %.2f\n", fn.Name, block.Label, len(plan.Packs()), plan.Cost())
			for _, p := range plan.Packs() {
				fmt.Fprintf(out, "  %s\n", p)
			}
		}
	}
}
