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
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// rawPointerDeref reports whether fn loads or stores through a pointer
// laundered from unsafe.Pointer, and returns the important locals the access
// touches.
func rawPointerDeref(fn *ssa.Function, il ImportantLocals) (bool, []ssa.Value) {
	var touched []ssa.Value
	found := false
	check := func(addr ssa.Value) {
		if !derivesFromUnsafe(addr, make(map[ssa.Value]bool)) {
			return
		}
		found = true
		if il.Contains(addr) {
			touched = append(touched, addr)
		}
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ssa.UnOp:
				if v.Op == token.MUL {
					check(v.X)
				}
			case *ssa.Store:
				check(v.Addr)
			}
		}
	}
	return found, touched
}

// reinterpretCast reports whether fn converts unsafe.Pointer into a typed
// pointer, exposing a mutable view of arbitrary memory, and returns the
// important locals feeding such a conversion.
func reinterpretCast(fn *ssa.Function, il ImportantLocals) (bool, []ssa.Value) {
	var touched []ssa.Value
	found := false
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			conv, ok := instr.(*ssa.Convert)
			if !ok {
				continue
			}
			if !isUnsafePointer(conv.X.Type()) || !isPointer(conv.Type()) {
				continue
			}
			found = true
			if il.Contains(conv.X) || il.Contains(conv) {
				touched = append(touched, conv)
			}
		}
	}
	return found, touched
}

// derivesFromUnsafe walks a pointer value back through conversions and
// projections looking for an unsafe.Pointer origin.
func derivesFromUnsafe(v ssa.Value, seen map[ssa.Value]bool) bool {
	if v == nil || seen[v] {
		return false
	}
	seen[v] = true
	if isUnsafePointer(v.Type()) {
		return true
	}
	switch x := v.(type) {
	case *ssa.Convert:
		return derivesFromUnsafe(x.X, seen)
	case *ssa.ChangeType:
		return derivesFromUnsafe(x.X, seen)
	case *ssa.FieldAddr:
		return derivesFromUnsafe(x.X, seen)
	case *ssa.IndexAddr:
		return derivesFromUnsafe(x.X, seen)
	case *ssa.Phi:
		for _, e := range x.Edges {
			if derivesFromUnsafe(e, seen) {
				return true
			}
		}
	}
	return false
}

func isUnsafePointer(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Kind() == types.UnsafePointer
}

func isPointer(t types.Type) bool {
	_, ok := t.Underlying().(*types.Pointer)
	return ok
}

// pointerReceiver reports whether fn is a method whose receiver can mutate
// shared state. Trusted library members are only trusted without one.
func pointerReceiver(fn *ssa.Function) bool {
	recv := fn.Signature.Recv()
	return recv != nil && isPointer(recv.Type())
}

// mutableParam reports whether the parameter type lets the callee mutate
// caller-visible state.
func mutableParam(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan:
		return true
	}
	return false
}
