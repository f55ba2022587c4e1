// Copyright (c) The Pear Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Pear analyzes whole programs for reachability and purity: it collects a
// usage graph per annotated root, refines ambiguous call sites to candidate
// sets, and decides whether sensitive inputs can reach unsafe operations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/report"
	"github.com/artemagvanian/pear/internal/formatutil"
)

var (
	configPath string
	platform   string
)

func main() {
	root := &cobra.Command{
		Use:          "pear",
		Short:        "whole-program reachability and purity analysis",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "analysis config file (yaml or toml)")
	root.PersistentFlags().StringVar(&platform, "platform", "", "GOOS to load the program for")

	root.AddCommand(
		stageCommand("reach", "collect usage graphs for annotated roots", analysis.StageReach),
		stageCommand("refine", "collect and refine call graphs for annotated roots", analysis.StageRefine),
		stageCommand("purity", "run the full purity analysis for annotated roots", analysis.StagePurity),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func stageCommand(name, short string, stage analysis.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [packages]",
		Short: short,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(stage, args)
		},
	}
}

func run(stage analysis.Stage, patterns []string) error {
	formatutil.AutoColor()

	cfg := config.NewDefault()
	if configPath != "" {
		config.SetGlobalConfig(configPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	log := config.NewLogGroup(cfg)

	if len(patterns) == 0 {
		patterns = defaultPatterns()
	}
	prog, err := analysis.LoadProgram(nil, platform, ssa.InstantiateGenerics, patterns)
	if err != nil {
		return err
	}

	roots := analysis.FindRoots(prog, cfg)
	if len(roots) == 0 {
		log.Warnf("no annotated roots found in %v", patterns)
		return nil
	}
	log.Infof("analyzing %d roots", len(roots))

	state := analysis.NewState(prog.Program, cfg)
	failed := 0
	for _, out := range analysis.RunAll(state, roots, stage) {
		if out.Err != nil {
			log.Errorf("%s: %v", out.Root.Unit.Name(), out.Err)
			failed++
			continue
		}
		if out.Result != nil {
			report.PrintVerdict(os.Stdout, out.Result)
		} else {
			log.Infof("reports written for %s", out.Root.Unit.Name())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d root(s) aborted with fatal errors", failed)
	}
	return nil
}

// defaultPatterns analyzes the module in the working directory when no
// patterns are given, or the current package outside a module.
func defaultPatterns() []string {
	data, err := os.ReadFile("go.mod")
	if err != nil {
		return []string{"."}
	}
	if mf, err := modfile.Parse("go.mod", data, nil); err == nil && mf.Module != nil {
		return []string{"./..."}
	}
	return []string{"."}
}
