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

package reachability

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/artemagvanian/pear/analysis/unit"
)

// UsageGraph records how callable units use each other: forward adjacency
// from a user to the (unit, usage) pairs it references, and the mirrored
// backward adjacency. The graph is append-only; edges are recorded once and
// never rewritten.
type UsageGraph struct {
	forward  map[unit.Unit]map[unit.Node]bool
	backward map[unit.Unit]map[unit.Node]bool

	// nodes is the discovered set: every (unit, usage) pair seen, including
	// the root.
	nodes map[unit.Node]bool
}

// NewUsageGraph returns an empty graph.
func NewUsageGraph() *UsageGraph {
	return &UsageGraph{
		forward:  make(map[unit.Unit]map[unit.Node]bool),
		backward: make(map[unit.Unit]map[unit.Node]bool),
		nodes:    make(map[unit.Node]bool),
	}
}

// RecordRoot seeds the graph with an edgeless root node.
func (g *UsageGraph) RecordRoot(root unit.Unit) {
	g.nodes[unit.NewNode(root, unit.Usage{Kind: unit.Root})] = true
}

// RecordUsed records that user references used, in both directions.
func (g *UsageGraph) RecordUsed(user unit.Unit, used unit.Node) {
	if g.forward[user] == nil {
		g.forward[user] = make(map[unit.Node]bool)
	}
	g.forward[user][used] = true

	back := unit.NewNode(user, used.Usage)
	if g.backward[used.Unit] == nil {
		g.backward[used.Unit] = make(map[unit.Node]bool)
	}
	g.backward[used.Unit][back] = true

	g.nodes[used] = true
}

// Succs returns the set of (unit, usage) pairs the user references.
func (g *UsageGraph) Succs(user unit.Unit) map[unit.Node]bool {
	return g.forward[user]
}

// Preds returns the set of (user, usage) pairs referencing the unit.
func (g *UsageGraph) Preds(used unit.Unit) map[unit.Node]bool {
	return g.backward[used]
}

// Nodes returns the discovered set.
func (g *UsageGraph) Nodes() map[unit.Node]bool {
	return g.nodes
}

// Units returns every discovered unit once, sorted by name for deterministic
// output.
func (g *UsageGraph) Units() []unit.Unit {
	seen := make(map[unit.Unit]bool, len(g.nodes))
	var units []unit.Unit
	for n := range g.nodes {
		if !seen[n.Unit] {
			seen[n.Unit] = true
			units = append(units, n.Unit)
		}
	}
	slices.SortFunc(units, func(a, b unit.Unit) bool {
		return a.Name() < b.Name()
	})
	return units
}

// IndirectPool returns the discovered nodes whose usage is indirect: the
// candidate pool refinement searches.
func (g *UsageGraph) IndirectPool() []unit.Node {
	var pool []unit.Node
	for n := range g.nodes {
		if n.Usage.Indirect() {
			pool = append(pool, n)
		}
	}
	slices.SortFunc(pool, func(a, b unit.Node) bool {
		if an, bn := a.Unit.Name(), b.Unit.Name(); an != bn {
			return an < bn
		}
		return a.Usage.Kind < b.Usage.Kind
	})
	return pool
}

// Consistent checks the mirror invariant: every forward edge has a matching
// backward edge and vice versa.
func (g *UsageGraph) Consistent() error {
	for user, succs := range g.forward {
		for n := range succs {
			if !g.backward[n.Unit][unit.NewNode(user, n.Usage)] {
				return fmt.Errorf("forward edge %s -> %s (%s) has no backward mirror",
					user.Name(), n.Unit.Name(), n.Usage.Kind)
			}
		}
	}
	for used, preds := range g.backward {
		for n := range preds {
			if !g.forward[n.Unit][unit.NewNode(used, n.Usage)] {
				return fmt.Errorf("backward edge %s <- %s (%s) has no forward mirror",
					used.Name(), n.Unit.Name(), n.Usage.Kind)
			}
		}
	}
	return nil
}
