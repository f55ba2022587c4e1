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

package reachability_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/reachability"
	"github.com/artemagvanian/pear/analysis/unit"
	"github.com/artemagvanian/pear/internal/analysistest"
)

func collect(t *testing.T, pkg *ssa.Package, root unit.Unit) *reachability.UsageGraph {
	t.Helper()
	store := bodystore.NewStore(pkg.Prog)
	log := config.NewLogGroup(config.NewDefault())
	c := reachability.NewCollector(pkg.Prog, store, log)
	g, err := c.Collect(root)
	require.NoError(t, err)
	require.NoError(t, g.Consistent())
	return g
}

// usagesOf returns the usages recorded for the named unit.
func usagesOf(g *reachability.UsageGraph, name string) []unit.Usage {
	var out []unit.Usage
	for n := range g.Nodes() {
		if n.Unit.Name() == name {
			out = append(out, n.Usage)
		}
	}
	return out
}

func hasKind(usages []unit.Usage, k unit.Kind) bool {
	for _, u := range usages {
		if u.Kind == k {
			return true
		}
	}
	return false
}

const fnptrSrc = `package t

func add(a, b int) int { return a + b }
func sub(a, b int) int { return a - b }

func choose(flag bool, a, b int) int {
	op := add
	if flag {
		op = sub
	}
	return op(a, b)
}
`

func TestCollectFunctionPointerValues(t *testing.T) {
	pkg := analysistest.BuildSSA(t, fnptrSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "choose"))
	g := collect(t, pkg, root)

	require.True(t, hasKind(usagesOf(g, "t.add"), unit.FunctionPointerValue))
	require.True(t, hasKind(usagesOf(g, "t.sub"), unit.FunctionPointerValue))

	// Both carry the same erased signature and land in the candidate pool.
	pool := g.IndirectPool()
	var sigs []string
	for _, n := range pool {
		if n.Usage.Kind == unit.FunctionPointerValue {
			sigs = append(sigs, n.Usage.Sig)
		}
	}
	require.Len(t, sigs, 2)
	require.Equal(t, sigs[0], sigs[1])
}

const ifaceSrc = `package t

type A struct{}

func (A) M() int { return 1 }

type B struct{}

func (B) M() int { return 2 }
func (B) N() int { return 3 }

type Narrow interface{ M() int }

type Wide interface {
	M() int
	N() int
}

func box(flag bool) int {
	var n Narrow
	if flag {
		n = A{}
	} else {
		var w Wide = B{}
		n = w
	}
	return n.M()
}
`

func TestCollectDispatchTableSlots(t *testing.T) {
	pkg := analysistest.BuildSSA(t, ifaceSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "box"))
	g := collect(t, pkg, root)

	am := usagesOf(g, "(t.A).M")
	require.True(t, hasKind(am, unit.DispatchTableSlot))
	for _, u := range am {
		if u.Kind == unit.DispatchTableSlot {
			require.Equal(t, "t.Narrow", u.InterfaceID)
			require.Equal(t, "M", u.Slot)
		}
	}

	bm := usagesOf(g, "(t.B).M")
	require.True(t, hasKind(bm, unit.DispatchTableSlot))
	for _, u := range bm {
		if u.Kind == unit.DispatchTableSlot {
			require.Equal(t, "t.Wide", u.InterfaceID)
		}
	}
	require.True(t, hasKind(usagesOf(g, "(t.B).N"), unit.DispatchTableSlot))
}

const deferSrc = `package t

func cleanup() {}

func risky(n int) {
	defer cleanup()
	if n < 0 {
		panic("negative")
	}
}

func calm() {
	defer cleanup()
}
`

func TestCollectDropAndUnwind(t *testing.T) {
	pkg := analysistest.BuildSSA(t, deferSrc)
	g := collect(t, pkg, unit.FromFunc(analysistest.FindFunc(t, pkg, "risky")))

	usages := usagesOf(g, "t.cleanup")
	require.True(t, hasKind(usages, unit.Drop))
	require.True(t, hasKind(usages, unit.Unwind), "deferred callee of a panicking body runs on unwind")
}

func TestCollectDropWithoutPanicHasNoUnwind(t *testing.T) {
	pkg := analysistest.BuildSSA(t, deferSrc)
	g := collect(t, pkg, unit.FromFunc(analysistest.FindFunc(t, pkg, "calm")))

	usages := usagesOf(g, "t.cleanup")
	require.True(t, hasKind(usages, unit.Drop))
	require.False(t, hasKind(usages, unit.Unwind))
}

const staticSrc = `package t

func add(a, b int) int { return a + b }

var handler = add

func useStatic() int {
	return handler(1, 2)
}
`

func TestCollectStaticsAndStoredFunctions(t *testing.T) {
	pkg := analysistest.BuildSSA(t, staticSrc)
	g := collect(t, pkg, unit.FromFunc(analysistest.FindFunc(t, pkg, "useStatic")))

	require.True(t, hasKind(usagesOf(g, "t.handler"), unit.Static))
	require.True(t, hasKind(usagesOf(g, "t.init"), unit.ThreadLocalShim))
	require.True(t, hasKind(usagesOf(g, "t.add"), unit.StaticFunctionValue))
}

const closureSrc = `package t

func run(f func() int) int { return f() }

func direct() int {
	x := 1
	return func() int { return x }()
}

func escaping() int {
	x := 1
	return run(func() int { return x })
}
`

func TestCollectClosures(t *testing.T) {
	pkg := analysistest.BuildSSA(t, closureSrc)

	g := collect(t, pkg, unit.FromFunc(analysistest.FindFunc(t, pkg, "direct")))
	require.True(t, hasKind(usagesOf(g, "t.direct$1"), unit.Call),
		"a closure entered immediately is a plain call")
	require.False(t, hasKind(usagesOf(g, "t.direct$1"), unit.StaticClosureShim))

	g = collect(t, pkg, unit.FromFunc(analysistest.FindFunc(t, pkg, "escaping")))
	require.True(t, hasKind(usagesOf(g, "t.escaping$1"), unit.StaticClosureShim))
}

func TestCollectIsIdempotent(t *testing.T) {
	pkg := analysistest.BuildSSA(t, ifaceSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "box"))

	names := func(g *reachability.UsageGraph) []string {
		var out []string
		for _, u := range g.Units() {
			out = append(out, u.Name())
		}
		return out
	}
	first := names(collect(t, pkg, root))
	second := names(collect(t, pkg, root))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("discovered sets differ between runs (-first +second):\n%s", diff)
	}
}
