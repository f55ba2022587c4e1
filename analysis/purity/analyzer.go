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

// Package purity implements the third stage of the pipeline: deciding
// whether sensitive inputs of a root can reach an unsafe operation, walking
// the refined usage graph with a taint set transitioned across every call
// boundary.
package purity

import (
	"fmt"
	"path/filepath"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/dataflow"
	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/unit"
)

// Analyzer evaluates one root against a refined usage graph. It is not
// shared across roots.
type Analyzer struct {
	cfg    *config.Config
	log    *config.LogGroup
	store  bodystore.Store
	oracle dataflow.Oracle
	graph  *refine.Graph

	result  *Result
	onStack map[unit.Unit]bool
	memo    map[memoKey]bool
}

// memoKey keys memoized verdicts by unit and whether anything sensitive
// flowed into it.
type memoKey struct {
	u       unit.Unit
	tainted bool
}

// NewAnalyzer returns an analyzer over the refined graph of one root.
func NewAnalyzer(cfg *config.Config, log *config.LogGroup, store bodystore.Store,
	oracle dataflow.Oracle, graph *refine.Graph) *Analyzer {
	return &Analyzer{
		cfg:     cfg,
		log:     log,
		store:   store,
		oracle:  oracle,
		graph:   graph,
		onStack: make(map[unit.Unit]bool),
		memo:    make(map[memoKey]bool),
	}
}

// Run analyzes the root and returns its verdict with the audit trail.
// annotatedPure is the declared expectation carried into the result.
func (a *Analyzer) Run(root unit.Unit, annotatedPure bool) (*Result, error) {
	if !root.IsFunction() {
		return nil, fmt.Errorf("root %s is not a function", root.Name())
	}
	a.result = &Result{DefPath: root.Name(), AnnotatedPure: annotatedPure}
	fn := root.Fn

	if fn.TypeParams().Len() > 0 && len(fn.TypeArgs()) == 0 {
		a.result.Reason = ReasonUnresolvedGenerics
		return a.result, nil
	}
	if a.mutableImportantArg(root) {
		a.result.Reason = ReasonMutableArguments
		return a.result, nil
	}

	seed := FromImportantArgs(a.oracle, fn, a.cfg.ImportantArgs)
	a.result.Pure = a.analyze(root, seed)
	if !a.result.Pure {
		a.result.Reason = ReasonImpureInnerCall
	}
	return a.result, nil
}

// mutableImportantArg reports whether a sensitive root argument could let
// callees write back into the caller, which the analysis cannot track.
func (a *Analyzer) mutableImportantArg(root unit.Unit) bool {
	positions := a.cfg.ImportantArgs
	if len(positions) == 0 {
		for i := range root.Fn.Params {
			positions = append(positions, i)
		}
	}
	for _, i := range positions {
		if i >= 0 && i < len(root.Fn.Params) && mutableParam(root.Fn.Params[i].Type()) {
			return true
		}
	}
	return false
}

// analyze evaluates one unit under the given taint set and files the audit
// record. Verdicts are memoized by (unit, tainted); a callee already on the
// active stack passes optimistically to break recursive cycles.
func (a *Analyzer) analyze(u unit.Unit, il ImportantLocals) bool {
	key := memoKey{u: u, tainted: !il.Empty()}
	if verdict, ok := a.memo[key]; ok {
		return verdict
	}
	a.onStack[u] = true
	verdict := a.evaluate(u, il)
	delete(a.onStack, u)
	a.memo[key] = verdict
	return verdict
}

func (a *Analyzer) evaluate(u unit.Unit, il ImportantLocals) bool {
	record := UnitRecord{DefPath: u.Name()}
	name := u.Name()

	if a.cfg.Allowlisted(name) {
		record.Allowlisted = true
		return a.file(record, true)
	}
	if il.Empty() {
		return a.file(record, true)
	}

	snap, err := a.store.BodyOf(u)
	if err != nil {
		// Opaque operation touched by sensitive data; nobody can vouch for it.
		a.log.Debugf("failing %s: %v", name, err)
		return a.file(record, false)
	}
	if a.cfg.DumpBodies {
		dir := filepath.Join(a.cfg.ReportsDir, "bodies")
		if err := bodystore.Dump(dir, config.SanitizeDefPath(name), snap); err != nil {
			a.log.Warnf("could not dump body of %s: %v", name, err)
		}
	}

	if a.cfg.TrustedStdlibMember(name) && !pointerReceiver(snap.Fn) {
		return a.file(record, true)
	}

	if fired, touched := rawPointerDeref(snap.Fn, il); fired {
		record.RawPointerDeref = true
		record.UnsafeLocals = valueNames(touched)
		return a.file(record, false)
	}
	if fired, touched := reinterpretCast(snap.Fn, il); fired {
		record.ReinterpretCast = true
		record.UnsafeLocals = valueNames(touched)
		return a.file(record, false)
	}

	pass := true
	ctl := dataflow.ControlDeps(snap.Fn)
	for _, edge := range a.graph.CallEdges(u) {
		if edge.Site == nil || !a.dependent(il, edge, ctl) {
			continue
		}
		for _, target := range edge.Targets {
			if a.onStack[target] {
				// Optimistic cycle break.
				continue
			}
			if !target.IsFunction() {
				pass = false
				continue
			}
			child := Transition(a.oracle, il, edge.Site, target.Fn)
			if !a.analyze(target, child) {
				pass = false
			}
		}
	}
	return a.file(record, pass)
}

// dependent reports whether the call edge is reached by tainted data, either
// through its arguments or by being guarded on a tainted condition.
func (a *Analyzer) dependent(il ImportantLocals, edge refine.Node, ctl map[*ssa.BasicBlock][]ssa.Value) bool {
	common := edge.Site.Common()
	if il.AnyOf(common.Args) {
		return true
	}
	if common.IsInvoke() && il.Contains(common.Value) {
		return true
	}
	return il.AnyOf(ctl[edge.Site.Block()])
}

// file appends the record to the audit trail and returns the verdict.
func (a *Analyzer) file(record UnitRecord, pass bool) bool {
	if pass {
		a.result.Passing = append(a.result.Passing, record)
	} else {
		a.result.Failing = append(a.result.Failing, record)
	}
	return pass
}

func valueNames(vs []ssa.Value) []string {
	var names []string
	for _, v := range vs {
		names = append(names, v.Name())
	}
	slices.Sort(names)
	return names
}
