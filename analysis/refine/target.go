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

package refine

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// TargetKind classifies what a call site's static callee is.
type TargetKind int

const (
	// Direct is a call whose callee is a single named function.
	Direct TargetKind = iota

	// Virtual is dispatch through an interface value.
	Virtual

	// Indirect is a call through a function value of unknown origin.
	Indirect

	// Builtin is a call to a language builtin; it never names a unit.
	Builtin
)

// CallTarget is the classification of one call site.
type CallTarget struct {
	Kind TargetKind

	// Fn is set for Direct targets.
	Fn *ssa.Function

	// InterfaceID, Iface and Slot are set for Virtual targets. InterfaceID is
	// the printable identity used in diagnostics; Iface is the interface type
	// candidates are checked against.
	InterfaceID string
	Iface       *types.Interface
	Slot        string

	// Sig is set for Indirect targets.
	Sig *types.Signature
}

// ClassifyCall determines the target of a call site. A callee that is neither
// a function reference, an interface dispatch, nor a function-typed value is
// an invariant violation reported as an error.
func ClassifyCall(common *ssa.CallCommon) (CallTarget, error) {
	if common.IsInvoke() {
		iface, _ := common.Value.Type().Underlying().(*types.Interface)
		return CallTarget{
			Kind:        Virtual,
			InterfaceID: common.Value.Type().String(),
			Iface:       iface,
			Slot:        common.Method.Name(),
		}, nil
	}
	switch v := common.Value.(type) {
	case *ssa.Function:
		return CallTarget{Kind: Direct, Fn: v}, nil
	case *ssa.MakeClosure:
		if fn, ok := v.Fn.(*ssa.Function); ok {
			return CallTarget{Kind: Direct, Fn: fn}, nil
		}
	case *ssa.Builtin:
		return CallTarget{Kind: Builtin}, nil
	}
	if sig, ok := common.Value.Type().Underlying().(*types.Signature); ok {
		return CallTarget{Kind: Indirect, Sig: sig}, nil
	}
	return CallTarget{}, fmt.Errorf("callee %s is neither a function reference nor function-typed",
		common.Value.Type())
}
