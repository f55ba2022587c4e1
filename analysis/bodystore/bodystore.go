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

// Package bodystore implements the program-body store the analyses query:
// a key-value store of per-function body snapshots keyed by definition path.
// There is no implicit global state; callers pass the store explicitly.
package bodystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/artemagvanian/pear/analysis/unit"
)

// ErrNoBody is returned when a unit has no retrievable program body: the
// definition path is unknown to the store, or the function is assembly-backed
// or externally linked. Callers recover from it by not expanding the unit.
var ErrNoBody = errors.New("no callable body")

// A Snapshot is the cached body of one function together with facts derived
// from it once. Snapshots are immutable after creation.
type Snapshot struct {
	Fn *ssa.Function

	hasPanic bool
}

// HasPanic reports whether the body contains a panic terminator. Deferred
// callees of such a function are also reached on the unwind path.
func (s *Snapshot) HasPanic() bool {
	return s.hasPanic
}

func newSnapshot(f *ssa.Function) *Snapshot {
	s := &Snapshot{Fn: f}
	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			continue
		}
		if _, ok := b.Instrs[len(b.Instrs)-1].(*ssa.Panic); ok {
			s.hasPanic = true
			break
		}
	}
	return s
}

// Store is the body-store collaborator: definition path in, body snapshot or
// ErrNoBody out.
type Store interface {
	// Body returns the snapshot for the given definition path.
	Body(defPath string) (*Snapshot, error)

	// BodyOf returns the snapshot for the given unit.
	BodyOf(u unit.Unit) (*Snapshot, error)
}

// MapStore is the default Store backed by concurrent maps, so that analyses
// of distinct roots may share one store.
type MapStore struct {
	index *xsync.Map[string, *ssa.Function]
	snaps *xsync.Map[string, *Snapshot]
}

// NewStore indexes every function of the program, including synthetic
// wrappers and instantiated generics.
func NewStore(prog *ssa.Program) *MapStore {
	s := &MapStore{
		index: xsync.NewMap[string, *ssa.Function](),
		snaps: xsync.NewMap[string, *Snapshot](),
	}
	for f := range ssautil.AllFunctions(prog) {
		s.index.Store(f.RelString(nil), f)
	}
	return s
}

// Body implements Store.
func (s *MapStore) Body(defPath string) (*Snapshot, error) {
	f, ok := s.index.Load(defPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in store", ErrNoBody, defPath)
	}
	return s.snapshotFor(defPath, f)
}

// BodyOf implements Store. Statics have no body.
func (s *MapStore) BodyOf(u unit.Unit) (*Snapshot, error) {
	if !u.IsFunction() {
		return nil, fmt.Errorf("%w: %s is a static", ErrNoBody, u.Name())
	}
	if len(u.Fn.Blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBody, u.Name())
	}
	return s.snapshotFor(u.Fn.RelString(nil), u.Fn)
}

func (s *MapStore) snapshotFor(defPath string, f *ssa.Function) (*Snapshot, error) {
	if len(f.Blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBody, defPath)
	}
	if snap, ok := s.snaps.Load(defPath); ok {
		return snap, nil
	}
	snap := newSnapshot(f)
	s.snaps.Store(defPath, snap)
	return snap, nil
}

// Dump writes the SSA body of the snapshot under dir, named by the sanitized
// definition path, for audit.
func Dump(dir string, sanitizedDefPath string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create bodies dir %s: %w", dir, err)
	}
	var buf bytes.Buffer
	ssa.WriteFunction(&buf, snap.Fn)
	path := filepath.Join(dir, sanitizedDefPath+".ssa")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("could not write body to %s: %w", path, err)
	}
	return nil
}
