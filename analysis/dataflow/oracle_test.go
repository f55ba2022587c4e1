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

package dataflow_test

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/dataflow"
	"github.com/artemagvanian/pear/internal/analysistest"
)

const straightSrc = `package t

func straight(a int, b int) int {
	c := a + 1
	d := b + 2
	return c + d
}
`

func TestForwardFollowsDefUse(t *testing.T) {
	pkg := analysistest.BuildSSA(t, straightSrc)
	fn := analysistest.FindFunc(t, pkg, "straight")
	a, b := fn.Params[0], fn.Params[1]

	o := dataflow.NewIntraOracle()
	deps := o.Dependencies(fn, []ssa.Value{a}, dataflow.Forward)

	c := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		bin, ok := v.(*ssa.BinOp)
		return ok && bin.Op == token.ADD && bin.X == a
	})
	d := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		bin, ok := v.(*ssa.BinOp)
		return ok && bin.Op == token.ADD && bin.X == b
	})
	require.True(t, deps[a], "targets are included in their own closure")
	require.True(t, deps[c], "c is computed from a")
	require.False(t, deps[d], "d does not depend on a")
	require.False(t, deps[b], "parameters do not flow into each other")
}

func TestBackwardCollectsOperands(t *testing.T) {
	pkg := analysistest.BuildSSA(t, straightSrc)
	fn := analysistest.FindFunc(t, pkg, "straight")
	a, b := fn.Params[0], fn.Params[1]

	sum := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		bin, ok := v.(*ssa.BinOp)
		return ok && bin.Op == token.ADD && bin.X != a && bin.X != b
	})

	o := dataflow.NewIntraOracle()
	deps := o.Dependencies(fn, []ssa.Value{sum}, dataflow.Backward)
	require.True(t, deps[a], "the result depends on a")
	require.True(t, deps[b], "the result depends on b")
}

const branchSrc = `package t

func branch(a int, b int) int {
	x := 0
	if a > 0 {
		x = 1
	}
	return x + b
}
`

func TestForwardTracksImplicitFlows(t *testing.T) {
	pkg := analysistest.BuildSSA(t, branchSrc)
	fn := analysistest.FindFunc(t, pkg, "branch")
	a, b := fn.Params[0], fn.Params[1]

	o := dataflow.NewIntraOracle()
	deps := o.Dependencies(fn, []ssa.Value{a}, dataflow.Forward)

	x := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		_, ok := v.(*ssa.Phi)
		return ok
	})
	require.True(t, deps[x], "x is chosen by a branch on a")
	require.False(t, deps[b], "b is not influenced by a")
}

func TestBackwardTracksImplicitFlows(t *testing.T) {
	pkg := analysistest.BuildSSA(t, branchSrc)
	fn := analysistest.FindFunc(t, pkg, "branch")
	a := fn.Params[0]

	x := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		_, ok := v.(*ssa.Phi)
		return ok
	})

	o := dataflow.NewIntraOracle()
	deps := o.Dependencies(fn, []ssa.Value{x}, dataflow.Backward)
	require.True(t, deps[a], "the chosen value depends on the branch input")
}

const storeSrc = `package t

func viaCell(a int) *int {
	p := new(int)
	*p = a
	return p
}
`

func TestForwardFlowsThroughStores(t *testing.T) {
	pkg := analysistest.BuildSSA(t, storeSrc)
	fn := analysistest.FindFunc(t, pkg, "viaCell")
	a := fn.Params[0]

	o := dataflow.NewIntraOracle()
	deps := o.Dependencies(fn, []ssa.Value{a}, dataflow.Forward)

	cell := analysistest.FindValue(t, fn, func(v ssa.Value) bool {
		_, ok := v.(*ssa.Alloc)
		return ok
	})
	require.True(t, deps[cell], "the cell holds a value derived from a")
}

func TestControlDepsDiamond(t *testing.T) {
	pkg := analysistest.BuildSSA(t, branchSrc)
	fn := analysistest.FindFunc(t, pkg, "branch")

	deps := dataflow.ControlDeps(fn)
	var governed int
	for _, conds := range deps {
		governed++
		require.NotEmpty(t, conds)
	}
	// Only the taken-branch block is governed; entry and join post-dominate
	// the branch.
	require.Equal(t, 1, governed)
}

func TestControlDepsNoBody(t *testing.T) {
	pkg := analysistest.BuildSSA(t, `package t

func decl(a int) int
`)
	fn := analysistest.FindFunc(t, pkg, "decl")
	require.Nil(t, dataflow.ControlDeps(fn))

	o := dataflow.NewIntraOracle()
	require.Empty(t, o.Dependencies(fn, nil, dataflow.Forward))
}
