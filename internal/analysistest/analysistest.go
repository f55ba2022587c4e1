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

// Package analysistest provides helpers for tests that need an SSA program
// built from an inline source string, without touching the filesystem or the
// build system.
package analysistest

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// BuildSSA type-checks and builds the single-file package in src and returns
// the built SSA package. Functions declared without a body come out with no
// blocks, which is how foreign units appear in real programs. The test fails
// on any parse, type or build error.
func BuildSSA(t *testing.T, src string) *ssa.Package {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "input.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("could not parse test source: %v", err)
	}
	files := []*ast.File{file}
	pkg := types.NewPackage(file.Name.Name, "")
	mode := ssa.SanityCheckFunctions
	ssaPkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset, pkg, files, mode)
	if err != nil {
		t.Fatalf("could not build test package: %v", err)
	}
	return ssaPkg
}

// FindFunc returns the named package-level function, failing the test when it
// does not exist.
func FindFunc(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()
	f := pkg.Func(name)
	if f == nil {
		t.Fatalf("function %s not found in test package", name)
	}
	return f
}

// FindMethod returns the method named sel of the named type's method set,
// failing the test when it does not exist. The pointer receiver method set is
// searched, which includes value receiver methods.
func FindMethod(t *testing.T, pkg *ssa.Package, typeName, sel string) *ssa.Function {
	t.Helper()
	obj := pkg.Pkg.Scope().Lookup(typeName)
	if obj == nil {
		t.Fatalf("type %s not found in test package", typeName)
	}
	prog := pkg.Prog
	mset := prog.MethodSets.MethodSet(types.NewPointer(obj.Type()))
	for i := 0; i < mset.Len(); i++ {
		m := mset.At(i)
		if m.Obj().Name() == sel {
			// FuncValue returns the declared method itself; MethodValue would
			// return a synthetic *T indirection wrapper for value receiver
			// methods found through the pointer method set.
			return prog.FuncValue(m.Obj().(*types.Func))
		}
	}
	t.Fatalf("method %s.%s not found in test package", typeName, sel)
	return nil
}

// FindGlobal returns the named package-level variable, failing the test when
// it does not exist.
func FindGlobal(t *testing.T, pkg *ssa.Package, name string) *ssa.Global {
	t.Helper()
	g := pkg.Var(name)
	if g == nil {
		t.Fatalf("global %s not found in test package", name)
	}
	return g
}

// FindValue scans the body of fn for the first value whose defining
// instruction satisfies pred, failing the test when none does.
func FindValue(t *testing.T, fn *ssa.Function, pred func(ssa.Value) bool) ssa.Value {
	t.Helper()
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if v, ok := instr.(ssa.Value); ok && pred(v) {
				return v
			}
		}
	}
	t.Fatalf("no value matching predicate in %s", fn.Name())
	return nil
}
