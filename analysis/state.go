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
	"golang.org/x/tools/go/ssa"

	"github.com/artemagvanian/pear/analysis/bodystore"
	"github.com/artemagvanian/pear/analysis/config"
	"github.com/artemagvanian/pear/analysis/dataflow"
)

// State holds what every stage of a run needs: the program, the body store,
// the dataflow oracle, configuration and logging. One state serves all roots
// of a run; per-root stage objects are created fresh so roots stay
// independent.
type State struct {
	Config  *config.Config
	Logger  *config.LogGroup
	Program *ssa.Program

	// Store caches per-function body snapshots, shared across roots.
	Store bodystore.Store

	// Oracle answers intra-procedural dependency queries for the purity
	// stage.
	Oracle dataflow.Oracle
}

// NewState builds the shared state for a loaded program.
func NewState(prog *ssa.Program, cfg *config.Config) *State {
	return &State{
		Config:  cfg,
		Logger:  config.NewLogGroup(cfg),
		Program: prog,
		Store:   bodystore.NewStore(prog),
		Oracle:  dataflow.NewIntraOracle(),
	}
}
