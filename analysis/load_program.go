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

// Package analysis wires the three pipeline stages together: loading the
// program, selecting annotated roots, and running collection, refinement and
// the purity analysis per root.
package analysis

import (
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the default loading mode in the analyses. We load all
// possible information.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// LoadedProgram represents a loaded program.
type LoadedProgram struct {
	// Program is the SSA version of the program.
	Program *ssa.Program

	// Packages is the list of initially loaded packages.
	Packages []*packages.Package
}

// LoadProgram loads, type checks and builds SSA for the packages matching
// args, on platform "platform" if nonempty. To understand how to specify the
// args, look at the documentation of packages.Load.
func LoadProgram(config *packages.Config,
	platform string,
	buildmode ssa.BuilderMode,
	args []string) (LoadedProgram, error) {

	if config == nil {
		config = &packages.Config{
			Mode:  PkgLoadMode,
			Tests: false,
			Fset:  token.NewFileSet(),
		}
	}
	if platform != "" {
		config.Env = append(os.Environ(), fmt.Sprintf("GOOS=%s", platform))
	}

	initialPackages, err := packages.Load(config, args...)
	if err != nil {
		return LoadedProgram{}, fmt.Errorf("failed to load packages: %v", err)
	}
	if len(initialPackages) == 0 {
		return LoadedProgram{}, fmt.Errorf("no packages")
	}
	if packages.PrintErrors(initialPackages) > 0 {
		return LoadedProgram{}, fmt.Errorf("errors found, exiting")
	}

	program, ssaPackages := ssautil.AllPackages(initialPackages, buildmode)
	for i, p := range ssaPackages {
		if p == nil {
			return LoadedProgram{}, fmt.Errorf("cannot build SSA for package %s", initialPackages[i])
		}
	}
	program.Build()

	return LoadedProgram{Program: program, Packages: initialPackages}, nil
}

// DirectiveKind represents the kind of analysis directive.
type DirectiveKind string

const (
	// DirectivePure marks a root expected to be pure.
	DirectivePure DirectiveKind = "pure"

	// DirectiveImpure marks a root expected to be impure.
	DirectiveImpure DirectiveKind = "impure"
)

// NewDirective returns the directive kind for c and true if c is a valid
// directive comment of the form `//pear:x`.
func NewDirective(c *ast.Comment) (DirectiveKind, bool) {
	_, after, found := strings.Cut(c.Text, "pear:")
	if !found {
		return "", false
	}
	switch k := DirectiveKind(strings.TrimSpace(after)); k {
	case DirectivePure, DirectiveImpure:
		return k, true
	default:
		return "", false
	}
}
