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

package unit_test

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artemagvanian/pear/analysis/unit"
	"github.com/artemagvanian/pear/internal/analysistest"
)

const sigSrc = `package t

type Widget struct{}

func (Widget) Render(n int) string { return "" }

func takesInt(n int) string    { return "" }
func takesAny(v any) string    { return "" }
func takesString(s string) int { return 0 }
`

func sigOf(t *testing.T, name string) *types.Signature {
	t.Helper()
	pkg := analysistest.BuildSSA(t, sigSrc)
	return analysistest.FindFunc(t, pkg, name).Signature
}

func TestSigMatchesIdentical(t *testing.T) {
	require.True(t, unit.SigMatches(sigOf(t, "takesInt"), sigOf(t, "takesInt")))
}

func TestSigMatchesToleratesWidening(t *testing.T) {
	// A candidate accepting a wider type than the call site provides is
	// still callable through the value.
	require.True(t, unit.SigMatches(sigOf(t, "takesInt"), sigOf(t, "takesAny")))
	require.True(t, unit.SigMatches(sigOf(t, "takesAny"), sigOf(t, "takesInt")))
}

func TestSigMatchesRejectsIncompatible(t *testing.T) {
	require.False(t, unit.SigMatches(sigOf(t, "takesInt"), sigOf(t, "takesString")))
	require.False(t, unit.SigMatches(nil, sigOf(t, "takesInt")))
}

func TestErasedSignatureDropsReceiver(t *testing.T) {
	pkg := analysistest.BuildSSA(t, sigSrc)
	method := analysistest.FindMethod(t, pkg, "Widget", "Render")
	free := analysistest.FindFunc(t, pkg, "takesInt")

	require.Equal(t,
		unit.ErasedSignature(free.Signature),
		unit.ErasedSignature(method.Signature),
		"a method and a free function with the same shape erase identically")
}

func TestIndirectUsageKinds(t *testing.T) {
	indirect := []unit.Kind{
		unit.StaticFunctionValue,
		unit.FunctionPointerValue,
		unit.DispatchTableSlot,
		unit.FunctionLikeInterfaceSlot,
		unit.StaticClosureShim,
	}
	for _, k := range indirect {
		require.True(t, unit.Usage{Kind: k}.Indirect(), "%s should be indirect", k)
	}
	direct := []unit.Kind{
		unit.Root, unit.Call, unit.Drop, unit.IndirectDrop, unit.Assert,
		unit.Unwind, unit.InlineAsm, unit.Static, unit.ThreadLocalShim,
	}
	for _, k := range direct {
		require.False(t, unit.Usage{Kind: k}.Indirect(), "%s should not be indirect", k)
	}
}
