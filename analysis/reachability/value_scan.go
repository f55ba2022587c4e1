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
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// funcsInOperand walks a value's operand tree and collects every function it
// carries: through boxing, conversions, closures, phis and aggregate
// construction. seen guards against cyclic phi chains.
func funcsInOperand(v ssa.Value, seen map[ssa.Value]bool) []*ssa.Function {
	if v == nil || seen[v] {
		return nil
	}
	seen[v] = true

	switch x := v.(type) {
	case *ssa.Function:
		return []*ssa.Function{x}
	case *ssa.MakeClosure:
		if fn, ok := x.Fn.(*ssa.Function); ok {
			return []*ssa.Function{fn}
		}
		return nil
	case *ssa.MakeInterface:
		return funcsInOperand(x.X, seen)
	case *ssa.ChangeInterface:
		return funcsInOperand(x.X, seen)
	case *ssa.ChangeType:
		return funcsInOperand(x.X, seen)
	case *ssa.Convert:
		return funcsInOperand(x.X, seen)
	case *ssa.Phi:
		var fns []*ssa.Function
		for _, e := range x.Edges {
			fns = append(fns, funcsInOperand(e, seen)...)
		}
		return fns
	default:
		return nil
	}
}

// closureEscapes reports whether the closure value is used anywhere other
// than as the immediate callee of a call, go or defer.
func closureEscapes(mc *ssa.MakeClosure) bool {
	refs := mc.Referrers()
	if refs == nil {
		return true
	}
	for _, r := range *refs {
		call, ok := r.(ssa.CallInstruction)
		if !ok || call.Common().Value != ssa.Value(mc) {
			return true
		}
	}
	return false
}

// baseAddr peels address projections (field, index, slicing) down to the
// underlying storage value.
func baseAddr(addr ssa.Value) ssa.Value {
	for {
		switch x := addr.(type) {
		case *ssa.FieldAddr:
			addr = x.X
		case *ssa.IndexAddr:
			addr = x.X
		case *ssa.Slice:
			addr = x.X
		default:
			return addr
		}
	}
}

// lookupSelection finds the named method in a method set, or nil.
func lookupSelection(mset *types.MethodSet, name string) *types.Selection {
	for i := 0; i < mset.Len(); i++ {
		if sel := mset.At(i); sel.Obj().Name() == name {
			return sel
		}
	}
	return nil
}

// isDestructorShape reports whether the selection is a Close() error method,
// the conventional teardown slot of a dispatch table.
func isDestructorShape(sel *types.Selection) bool {
	sig, ok := sel.Type().(*types.Signature)
	if !ok || sig.Params().Len() != 0 || sig.Results().Len() != 1 {
		return false
	}
	named, ok := sig.Results().At(0).Type().(*types.Named)
	return ok && named.Obj().Name() == "error" && named.Obj().Pkg() == nil
}

// isSetFinalizer matches runtime.SetFinalizer.
func isSetFinalizer(f *ssa.Function) bool {
	return f.Name() == "SetFinalizer" && f.Pkg != nil &&
		f.Pkg.Pkg.Path() == "runtime"
}
