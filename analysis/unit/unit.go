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

// Package unit defines the callable units the analyses operate on and the
// usage kinds attached to the edges of the usage graph.
package unit

import (
	"fmt"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// A Unit is a single callable unit of the analyzed program: a fully built SSA
// function (including instantiated generics, closures and synthetic wrappers)
// or a package-level static value. Exactly one of Fn and Global is non-nil.
// Units are produced on demand from the SSA program and never mutated; the
// analyses only build graphs about them.
type Unit struct {
	Fn     *ssa.Function
	Global *ssa.Global
}

// FromFunc wraps an SSA function as a callable unit.
func FromFunc(f *ssa.Function) Unit {
	return Unit{Fn: f}
}

// FromGlobal wraps a package-level static as a callable unit.
func FromGlobal(g *ssa.Global) Unit {
	return Unit{Global: g}
}

// IsFunction reports whether the unit is a function rather than a static.
func (u Unit) IsFunction() bool {
	return u.Fn != nil
}

// HasBody reports whether the unit has a retrievable program body. Statics and
// assembly-backed or externally linked functions have none.
func (u Unit) HasBody() bool {
	return u.Fn != nil && len(u.Fn.Blocks) > 0
}

// Func returns the function of the unit and panics if the unit is a static.
// Mirrors the collector invariant that signature- and slot-carrying usages are
// only ever attached to functions.
func (u Unit) Func() *ssa.Function {
	if u.Fn == nil {
		panic(fmt.Sprintf("unit %s is not a function", u.Name()))
	}
	return u.Fn
}

// Name returns the fully qualified definition path of the unit, e.g.
// "(*bytes.Buffer).Write" or "mypkg.someGlobal".
func (u Unit) Name() string {
	if u.Fn != nil {
		return u.Fn.RelString(nil)
	}
	if u.Global != nil {
		return u.Global.RelString(nil)
	}
	return "<invalid unit>"
}

// Pos returns the declaration position of the unit, if known.
func (u Unit) Pos() token.Pos {
	if u.Fn != nil {
		return u.Fn.Pos()
	}
	if u.Global != nil {
		return u.Global.Pos()
	}
	return token.NoPos
}

// Pkg returns the SSA package the unit belongs to, or nil for shared synthetic
// wrappers that have no package.
func (u Unit) Pkg() *ssa.Package {
	if u.Fn != nil {
		return u.Fn.Package()
	}
	if u.Global != nil {
		return u.Global.Package()
	}
	return nil
}

func (u Unit) String() string {
	return u.Name()
}

// IsAbstract reports whether the unit is an interface method declaration
// without an implementation. Refinement must never resolve to one of these.
func (u Unit) IsAbstract() bool {
	if u.Fn == nil {
		return false
	}
	recv := u.Fn.Signature.Recv()
	return recv != nil && types.IsInterface(recv.Type())
}
