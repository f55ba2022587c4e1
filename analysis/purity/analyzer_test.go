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

package purity_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/dataflow"
	"github.com/artemagvanian/pear/analysis/purity"
	"github.com/artemagvanian/pear/analysis/reachability"
	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/unit"
	"github.com/artemagvanian/pear/internal/analysistest"
)

// analyzeRoot runs the full pipeline for one root under cfg.
func analyzeRoot(t *testing.T, pkg *ssa.Package, cfg *config.Config, root unit.Unit) *purity.Result {
	t.Helper()
	cfg.ReportsDir = t.TempDir()
	log := config.NewLogGroup(cfg)
	store := bodystore.NewStore(pkg.Prog)

	ug, err := reachability.NewCollector(pkg.Prog, store, log).Collect(root)
	require.NoError(t, err)
	rg, err := refine.NewRefiner(pkg.Prog, store, cfg, log).Refine(root, ug)
	require.NoError(t, err)

	oracle := dataflow.NewIntraOracle()
	res, err := purity.NewAnalyzer(cfg, log, store, oracle, rg).Run(root, true)
	require.NoError(t, err)
	return res
}

func failingPaths(res *purity.Result) []string {
	var out []string
	for _, r := range res.Failing {
		out = append(out, r.DefPath)
	}
	return out
}

const chainSrc = `package t

func h(x int) int { return x + 1 }
func g(x int) int { return h(x) }
func f(x int) int { return g(x) }
`

func TestPureCallChainPasses(t *testing.T) {
	pkg := analysistest.BuildSSA(t, chainSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "f"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.True(t, res.Pure)
	require.Empty(t, res.Failing)
	require.False(t, res.Mismatch())
}

const leakSrc = `package t

func emit(x int)

func leak(secret int, n int) {
	v := 0
	if secret > 0 {
		v = 1
	}
	emit(v)
}
`

func TestImplicitLeakFails(t *testing.T) {
	pkg := analysistest.BuildSSA(t, leakSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "leak"))

	cfg := config.NewDefault()
	cfg.ImportantArgs = []int{0}
	res := analyzeRoot(t, pkg, cfg, root)

	require.False(t, res.Pure)
	require.Equal(t, purity.ReasonImpureInnerCall, res.Reason)
	require.Contains(t, failingPaths(res), "t.emit",
		"the opaque sink reached through the branch must be in the failing list")
}

func TestUnimportantArgumentPasses(t *testing.T) {
	pkg := analysistest.BuildSSA(t, leakSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "leak"))

	cfg := config.NewDefault()
	cfg.ImportantArgs = []int{1}
	res := analyzeRoot(t, pkg, cfg, root)

	require.True(t, res.Pure, "nothing derived from n reaches emit")
}

const unsafeSrc = `package t

import "unsafe"

func peek(p unsafe.Pointer) byte {
	return *(*byte)(p)
}

func pun(p unsafe.Pointer) *byte {
	return (*byte)(p)
}
`

func TestRawPointerDerefFails(t *testing.T) {
	pkg := analysistest.BuildSSA(t, unsafeSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "peek"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.False(t, res.Pure)
	require.Len(t, res.Failing, 1)
	require.True(t, res.Failing[0].RawPointerDeref)
}

func TestReinterpretCastFails(t *testing.T) {
	pkg := analysistest.BuildSSA(t, unsafeSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "pun"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.False(t, res.Pure)
	require.Len(t, res.Failing, 1)
	require.True(t, res.Failing[0].ReinterpretCast)
}

const monotoneSrc = `package t

import "unsafe"

func safeHelper(x int) int { return x * 2 }

func unsafeHelper(x int) int {
	p := unsafe.Pointer(uintptr(x))
	return int(*(*byte)(p))
}

func callsSafe(secret int) int   { return safeHelper(secret) }
func callsUnsafe(secret int) int { return unsafeHelper(secret) }
`

func TestVerdictFlipsWhenCalleeTurnsUnsafe(t *testing.T) {
	pkg := analysistest.BuildSSA(t, monotoneSrc)

	safe := analyzeRoot(t, pkg, config.NewDefault(),
		unit.FromFunc(analysistest.FindFunc(t, pkg, "callsSafe")))
	require.True(t, safe.Pure)

	leaky := analyzeRoot(t, pkg, config.NewDefault(),
		unit.FromFunc(analysistest.FindFunc(t, pkg, "callsUnsafe")))
	require.False(t, leaky.Pure)
	require.Contains(t, failingPaths(leaky), "t.unsafeHelper")
}

const trustSrc = `package t

import "unsafe"

type Counter struct{ n int }

func (Counter) Read(p unsafe.Pointer) byte   { return *(*byte)(p) }
func (c *Counter) Write(p unsafe.Pointer) byte { c.n++; return *(*byte)(p) }

func opaque(x int) int
`

func TestAllowlistedUnitPasses(t *testing.T) {
	pkg := analysistest.BuildSSA(t, trustSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "opaque"))

	cfg := config.NewDefault()
	cfg.Allowlist = []string{`^t\.opaque$`}
	res := analyzeRoot(t, pkg, cfg, root)

	require.True(t, res.Pure)
	require.True(t, res.Passing[0].Allowlisted)
}

func TestTrustedMemberWithoutPointerReceiverPasses(t *testing.T) {
	pkg := analysistest.BuildSSA(t, trustSrc)
	root := unit.FromFunc(analysistest.FindMethod(t, pkg, "Counter", "Read"))

	cfg := config.NewDefault()
	cfg.TrustedStdlib = []string{`Counter\).Read$`}
	res := analyzeRoot(t, pkg, cfg, root)

	require.True(t, res.Pure, "trusted member with a value receiver is vouched for")
}

func TestTrustedMemberWithPointerReceiverStillChecked(t *testing.T) {
	pkg := analysistest.BuildSSA(t, trustSrc)
	root := unit.FromFunc(analysistest.FindMethod(t, pkg, "Counter", "Write"))

	cfg := config.NewDefault()
	cfg.TrustedStdlib = []string{`Counter\).Write$`}
	cfg.ImportantArgs = []int{1}
	res := analyzeRoot(t, pkg, cfg, root)

	require.False(t, res.Pure, "a writable receiver voids the trust rule")
}

const preconditionSrc = `package t

func viaPointer(secret *int) int { return *secret }

func generic[T any](v T) T { return v }
`

func TestMutableArgumentPrecondition(t *testing.T) {
	pkg := analysistest.BuildSSA(t, preconditionSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "viaPointer"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.False(t, res.Pure)
	require.Equal(t, purity.ReasonMutableArguments, res.Reason)
}

func TestUnresolvedGenericsPrecondition(t *testing.T) {
	pkg := analysistest.BuildSSA(t, preconditionSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "generic"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.False(t, res.Pure)
	require.Equal(t, purity.ReasonUnresolvedGenerics, res.Reason)
}

const cycleSrc = `package t

func even(n int) bool {
	if n == 0 {
		return true
	}
	return odd(n - 1)
}

func odd(n int) bool {
	if n == 0 {
		return false
	}
	return even(n - 1)
}
`

func TestMutualRecursionTerminatesOptimistically(t *testing.T) {
	pkg := analysistest.BuildSSA(t, cycleSrc)
	root := unit.FromFunc(analysistest.FindFunc(t, pkg, "even"))
	res := analyzeRoot(t, pkg, config.NewDefault(), root)

	require.True(t, res.Pure)
	require.Empty(t, res.Failing)
}
