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

// Package report serializes the outputs of the three analysis stages, one
// file per root, with paths derived deterministically from the root's
// definition path.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/slices"

	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/purity"
	"github.com/artemagvanian/pear/analysis/reachability"
	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/unit"
	"github.com/artemagvanian/pear/internal/funcutil"
	"github.com/artemagvanian/pear/internal/graphutil"
)

// UsageEdge is one serialized edge of the usage graph.
type UsageEdge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Kind        string `json:"kind"`
	Sig         string `json:"sig,omitempty"`
	InterfaceID string `json:"interface,omitempty"`
	Slot        string `json:"slot,omitempty"`
	Impl        string `json:"impl,omitempty"`
}

// UsageReport is the serialized usage graph of one root.
type UsageReport struct {
	Root  string      `json:"root"`
	Units []string    `json:"units"`
	Edges []UsageEdge `json:"edges"`
}

// BuildUsage flattens the graph into deterministic slices.
func BuildUsage(root unit.Unit, g *reachability.UsageGraph) *UsageReport {
	rep := &UsageReport{Root: root.Name()}
	for _, u := range g.Units() {
		rep.Units = append(rep.Units, u.Name())
	}
	for _, u := range g.Units() {
		for n := range g.Succs(u) {
			e := UsageEdge{
				From:        u.Name(),
				To:          n.Unit.Name(),
				Kind:        n.Usage.Kind.String(),
				Sig:         n.Usage.Sig,
				InterfaceID: n.Usage.InterfaceID,
				Slot:        n.Usage.Slot,
			}
			if n.Usage.Kind == unit.DispatchTableSlot {
				e.Impl = n.Usage.Impl.String()
			}
			rep.Edges = append(rep.Edges, e)
		}
	}
	slices.SortFunc(rep.Edges, func(a, b UsageEdge) bool {
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
	return rep
}

// WriteUsage writes the usage graph report and returns its path.
func WriteUsage(cfg *config.Config, root unit.Unit, g *reachability.UsageGraph) (string, error) {
	path, err := cfg.ReportPath(root.Name(), ".usage.pear.json")
	if err != nil {
		return "", err
	}
	return path, writeJSON(path, BuildUsage(root, g))
}

// RefinedEdge is one serialized edge of the refined graph.
type RefinedEdge struct {
	From    string   `json:"from"`
	Kind    string   `json:"kind"`
	Targets []string `json:"targets"`
	Pos     string   `json:"pos,omitempty"`
}

// RefinedReport is the serialized refined graph of one root.
type RefinedReport struct {
	Root  string        `json:"root"`
	Edges []RefinedEdge `json:"edges"`

	// RecursionGroups lists the call cycles whose verdicts rest on the
	// optimistic recursion break.
	RecursionGroups [][]string `json:"recursion_groups,omitempty"`
}

// BuildRefined flattens the refined graph into deterministic slices.
func BuildRefined(root unit.Unit, g *refine.Graph) *RefinedReport {
	rep := &RefinedReport{Root: root.Name()}
	for _, caller := range g.Units() {
		for _, n := range g.CallEdges(caller) {
			e := RefinedEdge{
				From:    caller.Name(),
				Kind:    n.Kind.String(),
				Targets: funcutil.Map(n.Targets, unit.Unit.Name),
			}
			slices.Sort(e.Targets)
			if n.Pos.IsValid() {
				e.Pos = n.Pos.String()
			}
			rep.Edges = append(rep.Edges, e)
		}
	}
	for _, group := range graphutil.RecursionGroups(g) {
		names := funcutil.Map(group, unit.Unit.Name)
		slices.Sort(names)
		rep.RecursionGroups = append(rep.RecursionGroups, names)
	}
	slices.SortFunc(rep.RecursionGroups, func(a, b []string) bool {
		return len(a) > 0 && len(b) > 0 && a[0] < b[0]
	})
	slices.SortFunc(rep.Edges, func(a, b RefinedEdge) bool {
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return a.Kind < b.Kind
	})
	return rep
}

// WriteRefined writes the refined graph report and returns its path.
func WriteRefined(cfg *config.Config, root unit.Unit, g *refine.Graph) (string, error) {
	path, err := cfg.ReportPath(root.Name(), ".refined.pear.json")
	if err != nil {
		return "", err
	}
	return path, writeJSON(path, BuildRefined(root, g))
}

// WritePurity writes the purity result of one root and returns its path.
func WritePurity(cfg *config.Config, res *purity.Result) (string, error) {
	path, err := cfg.ReportPath(res.DefPath, ".purity.pear.json")
	if err != nil {
		return "", err
	}
	return path, writeJSON(path, res)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize report: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("could not write report %s: %w", path, err)
	}
	return nil
}
