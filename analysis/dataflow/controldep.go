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

package dataflow

import (
	"golang.org/x/tools/go/ssa"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/flow"
)

// ControlDeps computes, for each basic block of fn, the branch conditions the
// block is control-dependent on: block B depends on condition c of branch A
// when B post-dominates one successor of A but does not post-dominate A
// itself. Post-dominators are dominators of the reversed control-flow graph
// rooted at a virtual exit node.
func ControlDeps(fn *ssa.Function) map[*ssa.BasicBlock][]ssa.Value {
	if len(fn.Blocks) == 0 {
		return nil
	}
	g, exit := reverseCFG(fn)
	tree := flow.Dominators(cfgNode(exit), g)

	// ipdom[i] is the immediate post-dominator of block i, or -1 when the
	// block does not reach the exit.
	ipdom := make([]int64, len(fn.Blocks))
	for i := range fn.Blocks {
		if d := tree.DominatorOf(int64(i)); d != nil {
			ipdom[i] = d.ID()
		} else {
			ipdom[i] = -1
		}
	}
	atExit := func(id int64) bool { return id < 0 || id == exit }

	deps := make(map[*ssa.BasicBlock][]ssa.Value)
	seen := make(map[*ssa.BasicBlock]map[ssa.Value]bool)
	for _, a := range fn.Blocks {
		branch, ok := a.Instrs[len(a.Instrs)-1].(*ssa.If)
		if !ok {
			continue
		}
		stop := ipdom[a.Index]
		for _, s := range a.Succs {
			// Walk the post-dominator chain from the successor up to the
			// branch's own immediate post-dominator.
			r := int64(s.Index)
			for !atExit(r) && r != stop {
				b := fn.Blocks[r]
				if seen[b] == nil {
					seen[b] = make(map[ssa.Value]bool)
				}
				if !seen[b][branch.Cond] {
					seen[b][branch.Cond] = true
					deps[b] = append(deps[b], branch.Cond)
				}
				r = ipdom[r]
			}
		}
	}
	return deps
}

// reverseCFG builds the reversed control-flow graph of fn with a virtual exit
// node collecting every block that has no successors, and returns the graph
// together with the exit's id. Node ids are block indices.
func reverseCFG(fn *ssa.Function) (*revCFG, int64) {
	exit := int64(len(fn.Blocks))
	g := &revCFG{edges: make(map[int64]map[int64]bool, len(fn.Blocks)+1)}
	add := func(from, to int64) {
		if g.edges[from] == nil {
			g.edges[from] = make(map[int64]bool)
		}
		g.edges[from][to] = true
	}
	g.edges[exit] = make(map[int64]bool)
	for _, b := range fn.Blocks {
		id := int64(b.Index)
		if g.edges[id] == nil {
			g.edges[id] = make(map[int64]bool)
		}
		if len(b.Succs) == 0 {
			add(exit, id)
			continue
		}
		for _, s := range b.Succs {
			add(int64(s.Index), id)
		}
	}
	return g, exit
}

// revCFG adapts the reversed control-flow graph to gonum's graph.Directed, the
// same way the call graph is adapted for cycle enumeration elsewhere in this
// repository.
type revCFG struct {
	edges map[int64]map[int64]bool
}

// cfgNode implements graph.Node over a block index.
type cfgNode int64

// ID returns the id of the node.
func (n cfgNode) ID() int64 { return int64(n) }

// Node implements the Graph interface.
func (g *revCFG) Node(id int64) graph.Node {
	if _, ok := g.edges[id]; !ok {
		return nil
	}
	return cfgNode(id)
}

// Nodes returns the set of nodes in the graph.
func (g *revCFG) Nodes() graph.Nodes {
	ids := make([]int64, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	return &nodeSet{ids: ids, cur: -1}
}

// From returns the set of nodes reachable from the id.
func (g *revCFG) From(id int64) graph.Nodes {
	ids := make([]int64, 0, len(g.edges[id]))
	for to := range g.edges[id] {
		ids = append(ids, to)
	}
	return &nodeSet{ids: ids, cur: -1}
}

// To returns the set of nodes with an edge to the id.
func (g *revCFG) To(id int64) graph.Nodes {
	var ids []int64
	for from, tos := range g.edges {
		if tos[id] {
			ids = append(ids, from)
		}
	}
	return &nodeSet{ids: ids, cur: -1}
}

// HasEdgeBetween reports whether an edge exists between the two ids.
func (g *revCFG) HasEdgeBetween(xid, yid int64) bool {
	return g.edges[xid][yid] || g.edges[yid][xid]
}

// HasEdgeFromTo reports whether a directed edge exists from uid to vid.
func (g *revCFG) HasEdgeFromTo(uid, vid int64) bool {
	return g.edges[uid][vid]
}

// Edge returns the edge between the two ids (nil if none exists).
func (g *revCFG) Edge(uid, vid int64) graph.Edge {
	if g.edges[uid][vid] {
		return cfgEdge{from: cfgNode(uid), to: cfgNode(vid)}
	}
	return nil
}

// cfgEdge implements the graph.Edge interface.
type cfgEdge struct {
	from, to cfgNode
}

// From returns the origin of the edge.
func (e cfgEdge) From() graph.Node { return e.from }

// To returns the destination of the edge.
func (e cfgEdge) To() graph.Node { return e.to }

// ReversedEdge returns a new value representing the reversed edge.
func (e cfgEdge) ReversedEdge() graph.Edge { return cfgEdge{from: e.to, to: e.from} }

// nodeSet implements the graph.Nodes iterator over a slice of ids.
type nodeSet struct {
	ids []int64
	cur int
}

// Next moves to the next node, and reports whether one exists.
func (ns *nodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of remaining nodes.
func (ns *nodeSet) Len() int { return len(ns.ids) - ns.cur - 1 }

// Reset rewinds the iterator.
func (ns *nodeSet) Reset() { ns.cur = -1 }

// Node returns the current node.
func (ns *nodeSet) Node() graph.Node { return cfgNode(ns.ids[ns.cur]) }
