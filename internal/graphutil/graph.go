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

// Package graphutil adapts the refined usage graph to existing graph
// libraries for whole-graph queries.
package graphutil

import (
	"github.com/yourbasic/graph"

	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/unit"
)

// RGraph is an abstraction over a refined usage graph that satisfies
// graph.Iterator, with dense integer ids assigned to units.
type RGraph struct {
	// IDs maps units to their assigned ids.
	IDs map[unit.Unit]int

	// Units maps ids back to units.
	Units []unit.Unit

	// Edges is an adjacency set over ids.
	Edges map[int]map[int]bool
}

// NewRefinedIterator flattens the refined graph into an id-indexed iterator.
// Every target of every edge gets an id even when it has no outgoing edges
// of its own.
func NewRefinedIterator(g *refine.Graph) *RGraph {
	r := &RGraph{
		IDs:   make(map[unit.Unit]int),
		Edges: make(map[int]map[int]bool),
	}
	id := func(u unit.Unit) int {
		if i, ok := r.IDs[u]; ok {
			return i
		}
		i := len(r.Units)
		r.IDs[u] = i
		r.Units = append(r.Units, u)
		r.Edges[i] = make(map[int]bool)
		return i
	}
	for _, caller := range g.Units() {
		from := id(caller)
		for _, n := range g.CallEdges(caller) {
			for _, t := range n.Targets {
				r.Edges[from][id(t)] = true
			}
		}
	}
	return r
}

// Order implements the graph.Iterator interface for the RGraph.
func (r *RGraph) Order() int {
	return len(r.Units)
}

// Visit implements the graph.Iterator interface for the RGraph.
func (r *RGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for w := range r.Edges[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// RecursionGroups returns the strongly connected components of size two or
// more, plus self-loops: the unit groups whose purity verdicts rest on the
// optimistic recursion break.
func RecursionGroups(g *refine.Graph) [][]unit.Unit {
	r := NewRefinedIterator(g)
	var groups [][]unit.Unit
	for _, component := range graph.StrongComponents(r) {
		if len(component) == 1 && !r.Edges[component[0]][component[0]] {
			continue
		}
		members := make([]unit.Unit, 0, len(component))
		for _, id := range component {
			members = append(members, r.Units[id])
		}
		groups = append(groups, members)
	}
	return groups
}
