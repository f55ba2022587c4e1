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

package purity

import (
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/dataflow"
)

// ImportantLocals is the set of values in one body influenced by sensitive
// input. A set belongs to exactly one body; crossing a call boundary builds a
// new set via Transition instead of sharing this one.
type ImportantLocals struct {
	values map[ssa.Value]bool
}

// FromImportantArgs seeds a set from the designated sensitive parameter
// positions of fn and closes it forward. Empty positions mean every parameter
// is sensitive.
func FromImportantArgs(oracle dataflow.Oracle, fn *ssa.Function, positions []int) ImportantLocals {
	var targets []ssa.Value
	if len(positions) == 0 {
		for _, p := range fn.Params {
			targets = append(targets, p)
		}
	} else {
		for _, i := range positions {
			if i >= 0 && i < len(fn.Params) {
				targets = append(targets, fn.Params[i])
			}
		}
	}
	return closed(oracle, fn, targets)
}

// closed runs the forward closure over the targets. A bodyless callee keeps
// the bare seeds: sensitive data reached it even though there is nothing to
// close over.
func closed(oracle dataflow.Oracle, fn *ssa.Function, targets []ssa.Value) ImportantLocals {
	if len(targets) == 0 {
		return ImportantLocals{values: map[ssa.Value]bool{}}
	}
	if len(fn.Blocks) == 0 {
		values := make(map[ssa.Value]bool, len(targets))
		for _, t := range targets {
			values[t] = true
		}
		return ImportantLocals{values: values}
	}
	return ImportantLocals{values: oracle.Dependencies(fn, targets, dataflow.Forward)}
}

// Empty reports whether nothing sensitive flows through the body.
func (il ImportantLocals) Empty() bool {
	return len(il.values) == 0
}

// Contains reports whether v is influenced by sensitive input.
func (il ImportantLocals) Contains(v ssa.Value) bool {
	return il.values[v]
}

// AnyOf reports whether any of vs is influenced.
func (il ImportantLocals) AnyOf(vs []ssa.Value) bool {
	for _, v := range vs {
		if il.values[v] {
			return true
		}
	}
	return false
}

// Names returns the named members of the set, sorted, for audit records.
func (il ImportantLocals) Names() []string {
	var names []string
	for v := range il.values {
		switch v.(type) {
		case *ssa.Parameter, *ssa.FreeVar, *ssa.Alloc:
			names = append(names, v.Name())
		}
	}
	slices.Sort(names)
	return names
}

// Transition builds the callee-side set for one call edge: important caller
// arguments map to the callee's corresponding parameters, captured values of
// a closure conservatively mark every free variable, and the result is closed
// forward inside the callee. Synthetic shims with no body transition to the
// empty set; they construct values rather than compute with them.
func Transition(oracle dataflow.Oracle, il ImportantLocals, site ssa.CallInstruction, callee *ssa.Function) ImportantLocals {
	if callee.Synthetic != "" && len(callee.Blocks) == 0 {
		return ImportantLocals{values: map[ssa.Value]bool{}}
	}

	var targets []ssa.Value
	common := site.Common()

	if len(callee.Blocks) == 0 {
		// An external callee has no parameter values to map onto; keep the
		// caller-side operands so taint is not dropped at an opaque boundary.
		values := make(map[ssa.Value]bool)
		for _, arg := range common.Args {
			if il.Contains(arg) {
				values[arg] = true
			}
		}
		if common.IsInvoke() && il.Contains(common.Value) {
			values[common.Value] = true
		}
		return ImportantLocals{values: values}
	}

	// Invoke-mode receivers are not part of Args; align from the right.
	offset := len(callee.Params) - len(common.Args)
	for i, arg := range common.Args {
		if !il.Contains(arg) {
			continue
		}
		if j := i + offset; j >= 0 && j < len(callee.Params) {
			targets = append(targets, callee.Params[j])
		}
	}
	if common.IsInvoke() && offset > 0 && il.Contains(common.Value) {
		targets = append(targets, callee.Params[0])
	}

	if len(callee.FreeVars) > 0 {
		// The closure's captures collapse into one environment; track them
		// all rather than reconstruct which binding was important.
		for _, fv := range callee.FreeVars {
			targets = append(targets, fv)
		}
	}

	return closed(oracle, callee, targets)
}
