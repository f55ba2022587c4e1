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

package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/artemagvanian/pear/analysis/purity"
)

var (
	passMark     = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark     = color.New(color.FgRed, color.Bold).SprintFunc()
	mismatchMark = color.New(color.FgYellow).SprintFunc()
)

// PrintVerdict writes the one-line console summary for a root's result.
func PrintVerdict(w io.Writer, res *purity.Result) {
	mark := passMark("PASS")
	if !res.Pure {
		mark = failMark("FAIL")
	}
	fmt.Fprintf(w, "%s %s", mark, res.DefPath)
	if res.Reason != "" {
		fmt.Fprintf(w, " (%s)", res.Reason)
	}
	if res.Mismatch() {
		fmt.Fprintf(w, " %s", mismatchMark("[contradicts annotation]"))
	}
	fmt.Fprintln(w)
}
