// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"superpack/internal/asm"
	"superpack/internal/train"
	"superpack/internal/vectorize"
)

func main() {
	configPath := flag.String("config", "", "path to a packer config YAML file")
	useMCTS := flag.Bool("mcts", true, "use MCTS search instead of the DP solver")
	features := flag.String("features", "", "comma-separated target feature list")
	recordPath := flag.String("record", "", "append MCTS training samples to this JSONL file")
	verbosity := flag.Int("v", 0, "commonlog verbosity (0=info, 1=debug, 2=trace)")
	flag.Parse()

	commonlog.Configure(*verbosity, nil)
	logger := commonlog.GetLogger("superpack.packer-cli")

	if flag.NArg() < 1 {
		fmt.Println("Usage: packer-cli [flags] <file.vpasm>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	cfg, err := loadConfig(*configPath, *useMCTS)
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	program, err := asm.ParseFile(path)
	if err != nil {
		color.Red("parse error: %s", err)
		os.Exit(1)
	}

	fns, err := asm.Lower(program, nil)
	if err != nil {
		color.Red("lowering failed: %s", err)
		os.Exit(1)
	}

	var featureSet vectorize.TargetFeatures
	if *features != "" {
		featureSet = vectorize.NewFeatureSet(strings.Split(*features, ",")...)
	}

	packer := vectorize.NewPacker(cfg, vectorize.ReferenceCostModel{}, featureSet, vectorize.DefaultOperations(), nil, nil, nil, logger)
	if *recordPath != "" {
		rec, err := train.NewFileRecorder(*recordPath)
		if err != nil {
			log.Fatalf("record: %s", err)
		}
		defer rec.Close()
		packer.SetRecorder(rec)
	}

	for _, fn := range fns {
		for _, block := range fn.Blocks {
			plan, err := packer.Optimize(block)
			if err != nil {
				color.Red("packer failed on %s/%s: %s", fn.Name, block.Label, err)
				continue
			}
			fmt.Printf("%s/%s: %d packs, cost %.2f (verify %.2f)\n",
				fn.Name, block.Label, len(plan.Packs()), plan.Cost(), plan.VerifyCost())
			for _, p := range plan.Packs() {
				fmt.Printf("  %s\n", p)
			}
		}
	}

	color.Green("done: %s", path)
}

func loadConfig(path string, useMCTS bool) (*vectorize.Config, error) {
	if path == "" {
		return vectorize.NewConfig(vectorize.WithMCTS(useMCTS)), nil
	}
	return vectorize.LoadConfig(path, vectorize.WithMCTS(useMCTS))
}
