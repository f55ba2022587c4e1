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

package analysis

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/artemagvanian/pear/analysis/purity"
	"github.com/artemagvanian/pear/analysis/reachability"
	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/report"
)

// Stage selects how far down the pipeline a run goes.
type Stage int

const (
	// StageReach stops after reachability collection.
	StageReach Stage = iota

	// StageRefine stops after call-graph refinement.
	StageRefine

	// StagePurity runs the full pipeline.
	StagePurity
)

// RootOutcome is the result of running the pipeline for one root.
type RootOutcome struct {
	Root Root

	// Result is set when the purity stage ran.
	Result *purity.Result

	// Report paths written for this root.
	UsagePath   string
	RefinedPath string
	PurityPath  string

	// Err is the fatal error of this root's run, if any. A failed root does
	// not stop the others.
	Err error
}

// RunRoot runs the pipeline for one root up to the requested stage and
// writes the per-stage reports.
func RunRoot(s *State, root Root, stage Stage) RootOutcome {
	out := RootOutcome{Root: root}

	collector := reachability.NewCollector(s.Program, s.Store, s.Logger)
	ug, err := collector.Collect(root.Unit)
	if err != nil {
		out.Err = fmt.Errorf("collection failed for %s: %w", root.Unit.Name(), err)
		return out
	}
	if out.UsagePath, err = report.WriteUsage(s.Config, root.Unit, ug); err != nil {
		out.Err = err
		return out
	}
	if stage == StageReach {
		return out
	}

	refiner := refine.NewRefiner(s.Program, s.Store, s.Config, s.Logger)
	rg, err := refiner.Refine(root.Unit, ug)
	if err != nil {
		out.Err = err
		return out
	}
	if out.RefinedPath, err = report.WriteRefined(s.Config, root.Unit, rg); err != nil {
		out.Err = err
		return out
	}
	if stage == StageRefine {
		return out
	}

	analyzer := purity.NewAnalyzer(s.Config, s.Logger, s.Store, s.Oracle, rg)
	res, err := analyzer.Run(root.Unit, root.AnnotatedPure)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res
	if out.PurityPath, err = report.WritePurity(s.Config, res); err != nil {
		out.Err = err
		return out
	}
	return out
}

// RunAll runs the pipeline for every root. Roots are independent: they share
// only the body store and the oracle, both safe for concurrent use, so they
// run in parallel. Outcomes come back in root order.
func RunAll(s *State, roots []Root, stage Stage) []RootOutcome {
	outcomes := make([]RootOutcome, len(roots))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			outcomes[i] = RunRoot(s, root, stage)
			return nil
		})
	}
	// Goroutines report through outcomes, never through the group error.
	_ = g.Wait()
	return outcomes
}
