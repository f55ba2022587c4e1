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

// Package refine implements the second stage of the pipeline: re-walking the
// root's body and resolving every ambiguous call site against the pool of
// indirectly discovered units, producing a refined usage graph whose edges
// name concrete targets or explicit candidate sets.
package refine

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/reachability"
	"github.com/artemagvanian/pear/analysis/unit"
)

// Refiner resolves ambiguous call sites for one root. It is not shared
// across roots.
type Refiner struct {
	prog  *ssa.Program
	store bodystore.Store
	cfg   *config.Config
	log   *config.LogGroup

	pool   []unit.Node
	graph  *Graph
	walked map[unit.Unit]bool

	// stack is the active traversal path, kept for the diagnostic dump on
	// fatal errors; termination comes from walked and edge deduplication.
	stack []Frame
}

// Frame is one entry of the diagnostic call stack.
type Frame struct {
	Unit unit.Unit
	Pos  token.Position
}

// NewRefiner returns a refiner over the given program and body store.
func NewRefiner(prog *ssa.Program, store bodystore.Store, cfg *config.Config, log *config.LogGroup) *Refiner {
	return &Refiner{
		prog:   prog,
		store:  store,
		cfg:    cfg,
		log:    log,
		graph:  NewGraph(),
		walked: make(map[unit.Unit]bool),
	}
}

// Refine resolves the call sites reachable from root against the candidate
// pool collected in g. On a fatal resolution error the call stack is
// persisted before the error is returned.
func (r *Refiner) Refine(root unit.Unit, g *reachability.UsageGraph) (*Graph, error) {
	r.pool = g.IndirectPool()
	if err := r.walk(root); err != nil {
		return nil, err
	}
	return r.graph, nil
}

func (r *Refiner) walk(u unit.Unit) error {
	if r.walked[u] || !u.IsFunction() {
		return nil
	}
	r.walked[u] = true

	snap, err := r.store.BodyOf(u)
	if err != nil {
		// Foreign or intrinsic; the walk bottoms out here.
		r.log.Debugf("not refining %s: %v", u.Name(), err)
		return nil
	}

	r.stack = append(r.stack, Frame{Unit: u})
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	for _, b := range snap.Fn.Blocks {
		for _, instr := range b.Instrs {
			site, ok := instr.(ssa.CallInstruction)
			if !ok {
				continue
			}
			if err := r.refineSite(u, site); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Refiner) refineSite(caller unit.Unit, site ssa.CallInstruction) error {
	pos := r.prog.Fset.Position(site.Pos())
	r.stack[len(r.stack)-1].Pos = pos

	target, err := ClassifyCall(site.Common())
	if err != nil {
		return r.fatal(err.Error())
	}

	var node Node
	switch target.Kind {
	case Builtin:
		return nil
	case Direct:
		node = Node{Kind: Concrete, Targets: []unit.Unit{unit.FromFunc(target.Fn)}, Pos: pos, Site: site}
	case Virtual:
		candidates := r.virtualCandidates(target)
		if err := r.checkConcrete(candidates, target); err != nil {
			return err
		}
		if len(candidates) == 0 {
			r.log.Warnf("no candidates for %s.%s at %s", target.InterfaceID, target.Slot, pos)
			return nil
		}
		node = Node{Kind: Refined, Targets: candidates, Pos: pos, Site: site}
	case Indirect:
		candidates := r.indirectCandidates(target)
		if err := r.checkConcrete(candidates, target); err != nil {
			return err
		}
		if len(candidates) == 0 {
			r.log.Warnf("no candidates for function value of type %s at %s", target.Sig, pos)
			return nil
		}
		node = Node{Kind: Refined, Targets: candidates, Pos: pos, Site: site}
	}

	if !r.graph.Record(caller, node) {
		// Edge already present; do not re-expand.
		return nil
	}
	for _, t := range node.Targets {
		if err := r.walk(t); err != nil {
			return err
		}
	}
	return nil
}

// virtualCandidates searches the pool's dispatch-table slots for entries that
// can fill the call site's method. A slot was recorded under the interface of
// its originating boxing, but the value may since have been narrowed to
// another interface view, so candidates are matched by slot name plus the
// receiver satisfying the call site's interface, not by interface identity.
func (r *Refiner) virtualCandidates(target CallTarget) []unit.Unit {
	var out []unit.Unit
	seen := make(map[unit.Unit]bool)
	for _, n := range r.pool {
		if n.Usage.Kind != unit.DispatchTableSlot || n.Usage.Slot != target.Slot || seen[n.Unit] {
			continue
		}
		if !fillsSlot(n.Unit, target) {
			continue
		}
		seen[n.Unit] = true
		out = append(out, n.Unit)
	}
	return out
}

// fillsSlot reports whether the candidate method's receiver type satisfies
// the call site's interface.
func fillsSlot(u unit.Unit, target CallTarget) bool {
	if !u.IsFunction() || target.Iface == nil {
		return false
	}
	recv := u.Fn.Signature.Recv()
	return recv != nil && types.Implements(recv.Type(), target.Iface)
}

// indirectCandidates searches the pool's signature-carrying entries for ones
// compatible with the call site's function type.
func (r *Refiner) indirectCandidates(target CallTarget) []unit.Unit {
	var out []unit.Unit
	seen := make(map[unit.Unit]bool)
	for _, n := range r.pool {
		switch n.Usage.Kind {
		case unit.StaticFunctionValue, unit.FunctionPointerValue,
			unit.StaticClosureShim, unit.FunctionLikeInterfaceSlot:
		default:
			continue
		}
		if seen[n.Unit] || !n.Unit.IsFunction() {
			continue
		}
		if unit.SigMatches(target.Sig, n.Unit.Fn.Signature) {
			seen[n.Unit] = true
			out = append(out, n.Unit)
		}
	}
	return out
}

// checkConcrete enforces the bottom-out invariant: refinement may never
// produce a candidate that is itself virtual.
func (r *Refiner) checkConcrete(candidates []unit.Unit, target CallTarget) error {
	for _, c := range candidates {
		if c.IsAbstract() {
			return r.fatal("candidate " + c.Name() + " for " + target.InterfaceID + "." + target.Slot +
				" is still virtual after refinement")
		}
	}
	return nil
}
