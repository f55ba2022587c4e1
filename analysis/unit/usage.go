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

package unit

import (
	"go/token"
	"go/types"
)

// Kind describes how a callable unit was discovered from its user. The set is
// closed; the collector only ever produces these tags.
type Kind int

const (
	// Root is the seed of the analysis.
	Root Kind = iota

	// Call is a direct call through a call or go terminator.
	Call

	// Drop is a deferred call with a statically known callee, or the teardown
	// of a static's value.
	Drop

	// IndirectDrop is the destructor entry of a dispatch table: the Close-style
	// method of a concrete type boxed into an interface, or a finalizer
	// registered through runtime.SetFinalizer.
	IndirectDrop

	// Assert is a function referenced from a panic operand.
	Assert

	// Unwind is a deferred callee reached on the unwind path of a function
	// that contains a panic terminator.
	Unwind

	// InlineAsm is retained for report compatibility with hosts that carry
	// inline-assembly bodies; Go SSA does not, so the collector never produces
	// it and assembly-backed units surface as body-store misses instead.
	InlineAsm

	// Static is a reference to a package-level static value.
	Static

	// ThreadLocalShim is the compiler-generated package init shim reached
	// through a static.
	ThreadLocalShim

	// StaticFunctionValue is a function value stored into a static, found by
	// scanning the owning package's init stores. Carries a signature.
	StaticFunctionValue

	// FunctionPointerValue is a function whose value is taken as an operand
	// outside call position. Carries a signature.
	FunctionPointerValue

	// DispatchTableSlot is a method slot materialized by boxing a concrete
	// type into an interface. Carries the interface identity and the slot.
	DispatchTableSlot

	// FunctionLikeInterfaceSlot is a function-typed value boxed into an
	// interface. Carries a signature.
	FunctionLikeInterfaceSlot

	// StaticClosureShim is a closure whose value escapes call position.
	// Carries the closure's external signature.
	StaticClosureShim
)

var kindNames = map[Kind]string{
	Root:                      "root",
	Call:                      "call",
	Drop:                      "drop",
	IndirectDrop:              "indirect-drop",
	Assert:                    "assert",
	Unwind:                    "unwind",
	InlineAsm:                 "inline-asm",
	Static:                    "static",
	ThreadLocalShim:           "thread-local-shim",
	StaticFunctionValue:       "static-function-value",
	FunctionPointerValue:      "function-pointer-value",
	DispatchTableSlot:         "dispatch-table-slot",
	FunctionLikeInterfaceSlot: "function-like-interface-slot",
	StaticClosureShim:         "static-closure-shim",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ImplKind distinguishes where a dispatch-table slot implementation comes
// from: a method declared on the implementing type, or a promoted/synthetic
// wrapper the SSA builder materialized for it.
type ImplKind int

const (
	// ImplNone is used for usages that are not dispatch-table slots.
	ImplNone ImplKind = iota

	// ImplExplicit marks a slot filled by a method declared on the type.
	ImplExplicit

	// ImplInherent marks a slot filled by a promoted method or a synthetic
	// wrapper.
	ImplInherent
)

func (k ImplKind) String() string {
	switch k {
	case ImplExplicit:
		return "explicit"
	case ImplInherent:
		return "inherent"
	default:
		return "none"
	}
}

// Usage carries the specifics of how a unit is used, to aid refinement later.
// Signature-carrying kinds store the erased signature string; dispatch-table
// slots store the interface identity and the slot name. Usage values are
// comparable and can key maps.
type Usage struct {
	Kind Kind

	// Sig is the erased signature for StaticFunctionValue, FunctionPointerValue,
	// FunctionLikeInterfaceSlot and StaticClosureShim usages.
	Sig string

	// InterfaceID identifies the interface a dispatch table was built for.
	InterfaceID string

	// Slot is the method name within the dispatch table.
	Slot string

	// Impl is set for DispatchTableSlot usages.
	Impl ImplKind
}

// Indirect reports whether the usage did not name a concrete target directly:
// these usages form the candidate pool the refiner searches.
func (u Usage) Indirect() bool {
	switch u.Kind {
	case StaticFunctionValue, FunctionPointerValue, DispatchTableSlot,
		FunctionLikeInterfaceSlot, StaticClosureShim:
		return true
	default:
		return false
	}
}

// Node is a callable unit with usage specifics attached, the element type of
// the usage graph's adjacency sets.
type Node struct {
	Unit  Unit
	Usage Usage
}

// NewNode pairs a unit with its usage.
func NewNode(u Unit, usage Usage) Node {
	return Node{Unit: u, Usage: usage}
}

// ErasedSignature renders a signature without receiver or parameter names,
// so that dispatch candidates collected in different scopes compare equal.
func ErasedSignature(sig *types.Signature) string {
	return types.NewSignatureType(nil, nil, nil,
		unnamedTuple(sig.Params()), unnamedTuple(sig.Results()), sig.Variadic()).String()
}

func unnamedTuple(t *types.Tuple) *types.Tuple {
	vars := make([]*types.Var, t.Len())
	for i := 0; i < t.Len(); i++ {
		vars[i] = types.NewVar(token.NoPos, nil, "", t.At(i).Type())
	}
	return types.NewTuple(vars...)
}

// SigMatches compares the erased call-site signature want with the candidate
// signature have, tolerating parameters and results that differ only by
// interface widening. Receivers are ignored on both sides.
func SigMatches(want, have *types.Signature) bool {
	if want == nil || have == nil {
		return false
	}
	if want.Variadic() != have.Variadic() {
		return false
	}
	if !tupleMatches(want.Params(), have.Params()) {
		return false
	}
	return tupleMatches(want.Results(), have.Results())
}

func tupleMatches(want, have *types.Tuple) bool {
	if want.Len() != have.Len() {
		return false
	}
	for i := 0; i < want.Len(); i++ {
		w, h := want.At(i).Type(), have.At(i).Type()
		if types.Identical(w, h) {
			continue
		}
		// Subtyping tolerance: a candidate may accept a wider interface than
		// the call site provides, or return a narrower concrete type.
		if types.AssignableTo(w, h) || types.AssignableTo(h, w) {
			continue
		}
		return false
	}
	return true
}
