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

package graphutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/artemagvanian/pear/analysis/refine"
	"github.com/artemagvanian/pear/analysis/unit"
	"github.com/artemagvanian/pear/internal/analysistest"
	"github.com/artemagvanian/pear/internal/funcutil"
	"github.com/artemagvanian/pear/internal/graphutil"
)

const recursionSrc = `package t

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

func countdown(n int) {
	if n > 0 {
		countdown(n - 1)
	}
}

func entry(n int) {
	even(n)
	countdown(n)
}
`

func edge(g *refine.Graph, from, to *unit.Unit) {
	g.Record(*from, refine.Node{
		Kind:    refine.Concrete,
		Targets: []unit.Unit{*to},
	})
}

func TestRecursionGroups(t *testing.T) {
	pkg := analysistest.BuildSSA(t, recursionSrc)
	entry := unit.FromFunc(analysistest.FindFunc(t, pkg, "entry"))
	even := unit.FromFunc(analysistest.FindFunc(t, pkg, "even"))
	odd := unit.FromFunc(analysistest.FindFunc(t, pkg, "odd"))
	countdown := unit.FromFunc(analysistest.FindFunc(t, pkg, "countdown"))

	g := refine.NewGraph()
	edge(g, &entry, &even)
	edge(g, &entry, &countdown)
	edge(g, &even, &odd)
	edge(g, &odd, &even)
	edge(g, &countdown, &countdown)

	groups := graphutil.RecursionGroups(g)
	require.Len(t, groups, 2)

	var names [][]string
	for _, group := range groups {
		sorted := funcutil.Map(group, unit.Unit.Name)
		slices.Sort(sorted)
		names = append(names, sorted)
	}
	require.Contains(t, names, []string{"t.countdown"})
	require.Contains(t, names, []string{"t.even", "t.odd"})
}

func TestNoRecursionNoGroups(t *testing.T) {
	pkg := analysistest.BuildSSA(t, recursionSrc)
	entry := unit.FromFunc(analysistest.FindFunc(t, pkg, "entry"))
	even := unit.FromFunc(analysistest.FindFunc(t, pkg, "even"))

	g := refine.NewGraph()
	edge(g, &entry, &even)

	require.Empty(t, graphutil.RecursionGroups(g))
}
