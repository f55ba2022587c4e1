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

package refine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FatalError is an invariant violation during refinement. The traversal that
// hit it can be arbitrarily deep, so the active call stack is persisted to a
// diagnostic file before the error propagates.
type FatalError struct {
	Reason   string
	Stack    []Frame
	DumpPath string
}

func (e *FatalError) Error() string {
	if e.DumpPath != "" {
		return fmt.Sprintf("refinement failed: %s (call stack dumped to %s)", e.Reason, e.DumpPath)
	}
	return fmt.Sprintf("refinement failed: %s", e.Reason)
}

// fatal builds a FatalError from the current stack and writes the dump.
func (r *Refiner) fatal(reason string) error {
	e := &FatalError{Reason: reason, Stack: append([]Frame(nil), r.stack...)}

	dir := r.cfg.ReportsDir
	if dir == "" {
		dir = "pear-reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Errorf("could not create reports dir for call stack dump: %v", err)
		return e
	}
	path := filepath.Join(dir, "call_stack.log")
	if err := os.WriteFile(path, []byte(formatStack(reason, e.Stack)), 0o644); err != nil {
		r.log.Errorf("could not dump call stack: %v", err)
		return e
	}
	e.DumpPath = path
	return e
}

func formatStack(reason string, stack []Frame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fatal: %s\n\ncall stack (outermost first):\n", reason)
	for i, f := range stack {
		fmt.Fprintf(&sb, "%3d: %s", i, f.Unit.Name())
		if f.Pos.IsValid() {
			fmt.Fprintf(&sb, " at %s", f.Pos)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
