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

// Package dataflow implements the intra-procedural dataflow oracle the purity
// analysis queries: given target values inside one function body, it returns
// the set of values that depend on them (forward) or that they depend on
// (backward). Both directions account for implicit flows through branch
// conditions.
package dataflow

import (
	"go/token"
	"sync"

	"golang.org/x/tools/go/ssa"
)

// Direction selects which side of the dependency relation a query computes.
type Direction int

const (
	// Forward computes the values influenced by the targets.
	Forward Direction = iota

	// Backward computes the values the targets are influenced by.
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Oracle answers intra-procedural dependency queries. Implementations must be
// safe for concurrent use; analyses of independent roots share one oracle.
type Oracle interface {
	// Dependencies returns the closure of values related to targets inside fn
	// in the given direction. The targets themselves are included.
	Dependencies(fn *ssa.Function, targets []ssa.Value, dir Direction) map[ssa.Value]bool
}

// IntraOracle is the default Oracle: a def-use closure over the SSA body,
// store-aware so that flows through allocated cells are not lost, extended
// with control dependence for implicit flows.
type IntraOracle struct {
	mu  sync.Mutex
	ctl map[*ssa.Function]map[*ssa.BasicBlock][]ssa.Value
}

// NewIntraOracle returns an oracle with an empty control-dependence cache.
func NewIntraOracle() *IntraOracle {
	return &IntraOracle{ctl: make(map[*ssa.Function]map[*ssa.BasicBlock][]ssa.Value)}
}

// Dependencies implements Oracle.
func (o *IntraOracle) Dependencies(fn *ssa.Function, targets []ssa.Value, dir Direction) map[ssa.Value]bool {
	if fn == nil || len(fn.Blocks) == 0 {
		return map[ssa.Value]bool{}
	}
	if dir == Forward {
		return o.forward(fn, targets)
	}
	return o.backward(fn, targets)
}

// forward computes the set of values influenced by the targets. Explicit flows
// follow referrers; a store makes the written address depend on the value, so
// later loads pick the dependency up through the address. Implicit flows mark
// everything defined in blocks governed by an influenced condition; the two
// closures run to a joint fixpoint.
func (o *IntraOracle) forward(fn *ssa.Function, targets []ssa.Value) map[ssa.Value]bool {
	marked := make(map[ssa.Value]bool)
	var work []ssa.Value
	mark := func(v ssa.Value) {
		if v != nil && !marked[v] {
			marked[v] = true
			work = append(work, v)
		}
	}
	for _, t := range targets {
		mark(t)
	}
	ctl := o.controlDeps(fn)
	for {
		for len(work) > 0 {
			v := work[len(work)-1]
			work = work[:len(work)-1]
			refs := v.Referrers()
			if refs == nil {
				continue
			}
			for _, instr := range *refs {
				switch in := instr.(type) {
				case *ssa.Store:
					if in.Val == v {
						mark(in.Addr)
					}
				case *ssa.MapUpdate:
					if in.Value == v || in.Key == v {
						mark(in.Map)
					}
				case *ssa.Send:
					mark(in.Chan)
				default:
					if val, ok := instr.(ssa.Value); ok {
						mark(val)
					}
				}
			}
		}
		changed := false
		for b, conds := range ctl {
			if !anyMarked(marked, conds) {
				continue
			}
			for _, instr := range b.Instrs {
				if st, ok := instr.(*ssa.Store); ok && !marked[st.Addr] {
					mark(st.Addr)
					changed = true
					continue
				}
				if val, ok := instr.(ssa.Value); ok && !marked[val] {
					mark(val)
					changed = true
				}
			}
		}
		// A phi is chosen by the branches leading into its block even when its
		// operands are constants.
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				phi, ok := instr.(*ssa.Phi)
				if !ok {
					break
				}
				if !marked[phi] && anyMarked(marked, phiConds(ctl, b)) {
					mark(phi)
					changed = true
				}
			}
		}
		if !changed && len(work) == 0 {
			return marked
		}
	}
}

// backward computes the set of values the targets are influenced by: the
// operand closure of their defining instructions, plus the values stored to
// any loaded address, plus the conditions governing each defining block.
func (o *IntraOracle) backward(fn *ssa.Function, targets []ssa.Value) map[ssa.Value]bool {
	marked := make(map[ssa.Value]bool)
	var work []ssa.Value
	mark := func(v ssa.Value) {
		if v != nil && !marked[v] {
			marked[v] = true
			work = append(work, v)
		}
	}
	for _, t := range targets {
		mark(t)
	}
	ctl := o.controlDeps(fn)
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]

		// A load depends on every value stored to the loaded address.
		if un, ok := v.(*ssa.UnOp); ok && un.Op == token.MUL {
			if refs := un.X.Referrers(); refs != nil {
				for _, r := range *refs {
					if st, ok := r.(*ssa.Store); ok && st.Addr == un.X {
						mark(st.Val)
					}
				}
			}
		}

		instr, ok := v.(ssa.Instruction)
		if !ok {
			// Params, free variables, globals and constants are terminal.
			continue
		}
		for _, op := range instr.Operands(nil) {
			if op != nil && *op != nil {
				mark(*op)
			}
		}
		if b := instr.Block(); b != nil {
			for _, c := range ctl[b] {
				mark(c)
			}
			if _, ok := instr.(*ssa.Phi); ok {
				for _, c := range phiConds(ctl, b) {
					mark(c)
				}
			}
		}
	}
	return marked
}

// phiConds returns the branch conditions selecting which predecessor of b
// executes: the conditions of branches ending in a predecessor, and the
// conditions the predecessors are themselves governed by.
func phiConds(ctl map[*ssa.BasicBlock][]ssa.Value, b *ssa.BasicBlock) []ssa.Value {
	var conds []ssa.Value
	for _, p := range b.Preds {
		if len(p.Instrs) > 0 {
			if branch, ok := p.Instrs[len(p.Instrs)-1].(*ssa.If); ok {
				conds = append(conds, branch.Cond)
			}
		}
		conds = append(conds, ctl[p]...)
	}
	return conds
}

func (o *IntraOracle) controlDeps(fn *ssa.Function) map[*ssa.BasicBlock][]ssa.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	if deps, ok := o.ctl[fn]; ok {
		return deps
	}
	deps := ControlDeps(fn)
	o.ctl[fn] = deps
	return deps
}

func anyMarked(marked map[ssa.Value]bool, vs []ssa.Value) bool {
	for _, v := range vs {
		if marked[v] {
			return true
		}
	}
	return false
}
