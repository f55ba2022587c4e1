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

package analysis

import (
	"go/ast"
	"go/types"

	"golang.org/x/exp/slices"

	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/unit"
)

// Root is one selected analysis entry point.
type Root struct {
	Unit unit.Unit

	// AnnotatedPure is the declared expectation from the directive.
	AnnotatedPure bool
}

// FindRoots scans the loaded packages for function declarations annotated
// with a `//pear:pure` or `//pear:impure` directive, narrowed by the config's
// target filter, and resolves them to their SSA functions. Roots come back
// sorted by name.
func FindRoots(prog LoadedProgram, cfg *config.Config) []Root {
	var roots []Root
	for _, pkg := range prog.Packages {
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Doc == nil {
					continue
				}
				kind, ok := funcDirective(fd)
				if !ok {
					continue
				}
				obj, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
				if !ok {
					continue
				}
				fn := prog.Program.FuncValue(obj)
				if fn == nil {
					continue
				}
				u := unit.FromFunc(fn)
				if !cfg.MatchesTarget(u.Name()) {
					continue
				}
				roots = append(roots, Root{Unit: u, AnnotatedPure: kind == DirectivePure})
			}
		}
	}
	slices.SortFunc(roots, func(a, b Root) bool {
		return a.Unit.Name() < b.Unit.Name()
	})
	return roots
}

func funcDirective(fd *ast.FuncDecl) (DirectiveKind, bool) {
	for _, c := range fd.Doc.List {
		if kind, ok := NewDirective(c); ok {
			return kind, true
		}
	}
	return "", false
}
