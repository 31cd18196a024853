// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"superpack/internal/asm"
	"superpack/internal/vectorize"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: superpack <file.vpasm>")
		os.Exit(1)
	}

	path := os.Args[1]
	program, err := asm.ParseFile(path)
	if err != nil {
		reportParseError(path, err)
		os.Exit(1)
	}

	fns, err := asm.Lower(program, nil)
	if err != nil {
		color.Red("lowering failed: %s", err)
		os.Exit(1)
	}

	packer := vectorize.NewPacker(nil, vectorize.ReferenceCostModel{}, nil, vectorize.DefaultOperations(), nil, nil, nil, nil)
	for _, fn := range fns {
		for _, block := range fn.Blocks {
			plan, err := packer.Optimize(block)
			if err != nil {
				color.Red("packer failed on %s/%s: %s", fn.Name, block.Label, err)
				continue
			}
			fmt.Printf("%s/%s: %d packs, cost %.2f\n", fn.Name, block.Label, len(plan.Packs()), plan.Cost())
			for _, p := range plan.Packs() {
				fmt.Printf("  %s\n", p)
			}
		}
	}

	color.Green("done: %s", path)
}

// reportParseError prints a friendly caret-style parse error message, read
// straight off the underlying participle error's source position.
func reportParseError(path string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("%s", err)
		return
	}

	source, readErr := os.ReadFile(path)
	if readErr != nil {
		color.Red("%s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(string(source), "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}
