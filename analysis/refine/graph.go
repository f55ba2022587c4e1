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

package refine

import (
	"go/token"
	"sort"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/unit"
)

// NodeKind says whether a refined call edge names one statically resolved
// target or a searched candidate set.
type NodeKind int

const (
	// Concrete is a single statically resolved target.
	Concrete NodeKind = iota

	// Refined is a candidate set found by signature or dispatch-slot search.
	Refined
)

func (k NodeKind) String() string {
	if k == Concrete {
		return "concrete"
	}
	return "refined"
}

// Node is one outgoing call edge of the refined graph: the resolved target
// unit(s) and the call site they were resolved at. Site is the originating
// instruction, kept for the taint analysis; it does not participate in edge
// identity.
type Node struct {
	Kind    NodeKind
	Targets []unit.Unit
	Pos     token.Position
	Site    ssa.CallInstruction
}

// Graph is the refined usage graph: caller unit to outgoing call edges, with
// edge-level deduplication so cyclic call structures terminate.
type Graph struct {
	forward map[unit.Unit][]Node
	seen    map[string]bool
}

// NewGraph returns an empty refined graph.
func NewGraph() *Graph {
	return &Graph{
		forward: make(map[unit.Unit][]Node),
		seen:    make(map[string]bool),
	}
}

// Record adds the edge unless an identical one is already present, and
// reports whether it was new.
func (g *Graph) Record(caller unit.Unit, n Node) bool {
	key := edgeKey(caller, n)
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	g.forward[caller] = append(g.forward[caller], n)
	return true
}

// CallEdges returns the recorded outgoing edges of the unit.
func (g *Graph) CallEdges(caller unit.Unit) []Node {
	return g.forward[caller]
}

// Units returns every caller with recorded edges, sorted by name.
func (g *Graph) Units() []unit.Unit {
	units := make([]unit.Unit, 0, len(g.forward))
	for u := range g.forward {
		units = append(units, u)
	}
	slices.SortFunc(units, func(a, b unit.Unit) bool {
		return a.Name() < b.Name()
	})
	return units
}

func edgeKey(caller unit.Unit, n Node) string {
	names := make([]string, 0, len(n.Targets))
	for _, t := range n.Targets {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return caller.Name() + "|" + n.Pos.String() + "|" + n.Kind.String() + "|" + strings.Join(names, ",")
}
