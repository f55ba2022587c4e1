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

// Package reachability implements the first stage of the pipeline: a walk
// over a root's body and everything it references, producing a usage graph
// in which every discovered callable unit is tagged with how it was found.
package reachability

import (
	"errors"
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/unit"
)

// ErrUnresolved reports an invariant violation during collection: a dispatch
// table was requested for a type that cannot fill one of its slots. The
// collector assumes a fully concrete world and never resolves best-effort.
var ErrUnresolved = errors.New("unresolvable dispatch slot")

// Collector walks bodies and records usages. One collector serves one root;
// its state is not shared across roots.
type Collector struct {
	prog  *ssa.Program
	store bodystore.Store
	log   *config.LogGroup

	graph   *UsageGraph
	visited map[unit.Unit]bool
	work    []unit.Unit
}

// NewCollector returns a collector over the given program and body store.
func NewCollector(prog *ssa.Program, store bodystore.Store, log *config.LogGroup) *Collector {
	return &Collector{
		prog:    prog,
		store:   store,
		log:     log,
		graph:   NewUsageGraph(),
		visited: make(map[unit.Unit]bool),
	}
}

// Collect walks the program from root and returns the usage graph. The walk
// is a worklist fixpoint rather than recursion, so call-graph depth never
// translates into native stack depth.
func (c *Collector) Collect(root unit.Unit) (*UsageGraph, error) {
	c.graph.RecordRoot(root)
	c.push(root)
	for len(c.work) > 0 {
		u := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		if err := c.expand(u); err != nil {
			return nil, err
		}
	}
	return c.graph, nil
}

func (c *Collector) push(u unit.Unit) {
	if !c.visited[u] {
		c.visited[u] = true
		c.work = append(c.work, u)
	}
}

// record adds an edge and queues the used unit for expansion.
func (c *Collector) record(user unit.Unit, used unit.Unit, usage unit.Usage) {
	c.log.Tracef("%s uses %s (%s)", user.Name(), used.Name(), usage.Kind)
	c.graph.RecordUsed(user, unit.NewNode(used, usage))
	c.push(used)
}

func (c *Collector) expand(u unit.Unit) error {
	if !u.IsFunction() {
		c.expandStatic(u)
		return nil
	}
	snap, err := c.store.BodyOf(u)
	if err != nil {
		// Foreign or assembly-backed unit; nothing to walk.
		c.log.Debugf("not expanding %s: %v", u.Name(), err)
		return nil
	}
	return c.expandBody(u, snap)
}

func (c *Collector) expandBody(u unit.Unit, snap *bodystore.Snapshot) error {
	f := snap.Fn
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ssa.Call:
				c.visitCall(u, v.Common())
			case *ssa.Go:
				c.visitCall(u, v.Common())
			case *ssa.Defer:
				c.visitDefer(u, v, snap.HasPanic())
			case *ssa.Panic:
				c.visitPanic(u, v)
			case *ssa.MakeInterface:
				if err := c.visitMakeInterface(u, v); err != nil {
					return err
				}
			case *ssa.MakeClosure:
				c.visitMakeClosure(u, v)
			}
			c.scanOperands(u, instr)
		}
	}
	return nil
}

// visitCall handles call and go sites with a statically known callee. Invoke
// mode is dispatch through an interface value; the dispatch-table slots
// recorded at the MakeInterface that built the value cover it.
func (c *Collector) visitCall(u unit.Unit, common *ssa.CallCommon) {
	if common.IsInvoke() {
		return
	}
	switch callee := common.Value.(type) {
	case *ssa.Function:
		if isSetFinalizer(callee) && len(common.Args) == 2 {
			// The registered finalizer runs as a destructor.
			for _, fin := range funcsInOperand(common.Args[1], make(map[ssa.Value]bool)) {
				c.record(u, unit.FromFunc(fin), unit.Usage{Kind: unit.IndirectDrop})
			}
		}
		c.record(u, unit.FromFunc(callee), unit.Usage{Kind: unit.Call})
	case *ssa.MakeClosure:
		// A closure built and immediately entered is an ordinary call.
		if fn, ok := callee.Fn.(*ssa.Function); ok {
			c.record(u, unit.FromFunc(fn), unit.Usage{Kind: unit.Call})
		}
	}
	// A dynamic callee names no unit here; the candidate pool built from
	// address-taken functions and dispatch slots stands in for it.
}

// visitDefer records the teardown edge of a deferred call, and the unwind
// edge when the surrounding body can panic: deferred callees run on the
// unwind path too.
func (c *Collector) visitDefer(u unit.Unit, v *ssa.Defer, bodyPanics bool) {
	common := v.Common()
	if common.IsInvoke() {
		return
	}
	var callee *ssa.Function
	switch cv := common.Value.(type) {
	case *ssa.Function:
		callee = cv
	case *ssa.MakeClosure:
		callee, _ = cv.Fn.(*ssa.Function)
	}
	if callee == nil {
		return
	}
	c.record(u, unit.FromFunc(callee), unit.Usage{Kind: unit.Drop})
	if bodyPanics {
		c.record(u, unit.FromFunc(callee), unit.Usage{Kind: unit.Unwind})
	}
}

// visitPanic records any function value flowing into the panic operand.
func (c *Collector) visitPanic(u unit.Unit, v *ssa.Panic) {
	for _, fn := range funcsInOperand(v.X, make(map[ssa.Value]bool)) {
		c.record(u, unit.FromFunc(fn), unit.Usage{Kind: unit.Assert})
	}
}

// visitMakeInterface records the dispatch table materialized when a concrete
// value is boxed into an interface: one slot per interface method the table
// must fill, the Close-style destructor entry, and the function-like slot
// when the boxed value is itself func-typed.
func (c *Collector) visitMakeInterface(u unit.Unit, v *ssa.MakeInterface) error {
	ifaceID := v.Type().String()

	if sig, ok := v.X.Type().Underlying().(*types.Signature); ok {
		for _, fn := range funcsInOperand(v.X, make(map[ssa.Value]bool)) {
			c.record(u, unit.FromFunc(fn), unit.Usage{
				Kind: unit.FunctionLikeInterfaceSlot,
				Sig:  unit.ErasedSignature(sig),
			})
		}
		return nil
	}

	iface, ok := v.Type().Underlying().(*types.Interface)
	if !ok {
		return nil
	}
	mset := c.prog.MethodSets.MethodSet(v.X.Type())

	if iface.Empty() {
		// Boxing into the empty interface keeps the whole method set alive.
		for i := 0; i < mset.Len(); i++ {
			c.recordSlot(u, ifaceID, mset.At(i))
		}
	} else {
		for i := 0; i < iface.NumMethods(); i++ {
			m := iface.Method(i)
			sel := lookupSelection(mset, m.Name())
			if sel == nil {
				return fmt.Errorf("%w: %s has no method %s for %s",
					ErrUnresolved, v.X.Type(), m.Name(), ifaceID)
			}
			c.recordSlot(u, ifaceID, sel)
		}
	}

	if closer := lookupSelection(mset, "Close"); closer != nil && isDestructorShape(closer) {
		c.record(u, unit.FromFunc(c.prog.MethodValue(closer)), unit.Usage{Kind: unit.IndirectDrop})
	}
	return nil
}

func (c *Collector) recordSlot(u unit.Unit, ifaceID string, sel *types.Selection) {
	f := c.prog.MethodValue(sel)
	if f == nil {
		return
	}
	impl := unit.ImplExplicit
	// Promoted methods and builder-synthesized wrappers fill the slot on the
	// implementor's behalf.
	if f.Synthetic != "" || len(sel.Index()) > 1 {
		impl = unit.ImplInherent
	}
	c.record(u, unit.FromFunc(f), unit.Usage{
		Kind:        unit.DispatchTableSlot,
		InterfaceID: ifaceID,
		Slot:        sel.Obj().Name(),
		Impl:        impl,
	})
}

// visitMakeClosure records an escaping closure as a shim carrying its
// external signature. A closure consumed directly as a callee is handled at
// the call site instead.
func (c *Collector) visitMakeClosure(u unit.Unit, v *ssa.MakeClosure) {
	fn, ok := v.Fn.(*ssa.Function)
	if !ok {
		return
	}
	if !closureEscapes(v) {
		return
	}
	sig, _ := v.Type().Underlying().(*types.Signature)
	if sig == nil {
		return
	}
	c.record(u, unit.FromFunc(fn), unit.Usage{
		Kind: unit.StaticClosureShim,
		Sig:  unit.ErasedSignature(sig),
	})
}

// expandStatic walks from a static to what its initialization references:
// the owning package's init shim, and any function values stored into it,
// including stores through field and index projections of the static.
func (c *Collector) expandStatic(u unit.Unit) {
	g := u.Global
	pkg := g.Pkg
	if pkg == nil {
		return
	}
	if init := pkg.Func("init"); init != nil {
		c.record(u, unit.FromFunc(init), unit.Usage{Kind: unit.ThreadLocalShim})
		c.scanInitStores(u, g, init)
		for _, anon := range init.AnonFuncs {
			c.scanInitStores(u, g, anon)
		}
	}
}

func (c *Collector) scanInitStores(u unit.Unit, g *ssa.Global, init *ssa.Function) {
	for _, b := range init.Blocks {
		for _, instr := range b.Instrs {
			st, ok := instr.(*ssa.Store)
			if !ok || baseAddr(st.Addr) != ssa.Value(g) {
				continue
			}
			for _, fn := range funcsInOperand(st.Val, make(map[ssa.Value]bool)) {
				c.record(u, unit.FromFunc(fn), unit.Usage{
					Kind: unit.StaticFunctionValue,
					Sig:  unit.ErasedSignature(fn.Signature),
				})
			}
		}
	}
}

// scanOperands records address-taken functions and referenced statics from
// the instruction's operands. Callee slots and closure bodies are excluded;
// their usages are recorded with more specific kinds above.
func (c *Collector) scanOperands(u unit.Unit, instr ssa.Instruction) {
	skip := make(map[ssa.Value]bool, 2)
	switch x := instr.(type) {
	case ssa.CallInstruction:
		skip[x.Common().Value] = true
	case *ssa.MakeClosure:
		skip[x.Fn] = true
	case *ssa.MakeInterface:
		skip[x.X] = true
	case *ssa.Panic:
		skip[x.X] = true
	}
	for _, op := range instr.Operands(nil) {
		v := *op
		if v == nil || skip[v] {
			continue
		}
		switch x := v.(type) {
		case *ssa.Function:
			c.record(u, unit.FromFunc(x), unit.Usage{
				Kind: unit.FunctionPointerValue,
				Sig:  unit.ErasedSignature(x.Signature),
			})
		case *ssa.Global:
			c.record(u, unit.FromGlobal(x), unit.Usage{Kind: unit.Static})
		}
	}
}
