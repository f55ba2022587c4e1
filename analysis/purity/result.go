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

// Reason is the code attached to a failing verdict.
type Reason string

const (
	// ReasonImpureInnerCall marks a root whose sensitive data reaches a call
	// that could not be vouched for.
	ReasonImpureInnerCall Reason = "impure inner call"

	// ReasonUnresolvedGenerics marks a root that is still generic; an
	// uninstantiated body cannot be analyzed soundly.
	ReasonUnresolvedGenerics Reason = "unresolved generics"

	// ReasonMutableArguments marks a root taking a sensitive argument through
	// which the callee graph could write back to the caller.
	ReasonMutableArguments Reason = "mutable arguments"
)

// UnitRecord is one audit entry: how a visited unit was judged.
type UnitRecord struct {
	DefPath string `json:"def_path"`

	// Allowlisted is set when configuration trusted the unit unconditionally.
	Allowlisted bool `json:"allowlisted"`

	// RawPointerDeref is set when the body dereferences a laundered pointer.
	RawPointerDeref bool `json:"raw_pointer_deref"`

	// ReinterpretCast is set when the body converts unsafe.Pointer to a
	// typed pointer.
	ReinterpretCast bool `json:"reinterpret_cast"`

	// UnsafeLocals names the important locals the unit was unsafe with
	// respect to, if any.
	UnsafeLocals []string `json:"unsafe_locals,omitempty"`
}

// Result is the verdict for one analyzed root plus its audit trail.
type Result struct {
	DefPath string `json:"def_path"`

	// AnnotatedPure is the declared expectation from the root's annotation.
	AnnotatedPure bool `json:"annotated_pure"`

	// Pure is the computed verdict.
	Pure bool `json:"pure"`

	// Reason is set when Pure is false.
	Reason Reason `json:"reason,omitempty"`

	// Passing and Failing are the per-unit audit records in visit order.
	Passing []UnitRecord `json:"passing"`
	Failing []UnitRecord `json:"failing"`
}

// Mismatch reports whether the computed verdict contradicts the annotation.
func (r *Result) Mismatch() bool {
	return r.Pure != r.AnnotatedPure
}
