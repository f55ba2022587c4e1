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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artemagvanian/pear/analysis/config"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadYaml(t *testing.T) {
	path := writeConfig(t, "pear.yaml", `
reports-dir: out
target-filter: "^t\\."
allowlist:
  - "^t\\.trusted$"
trusted-stdlib:
  - "^strings\\."
important-args: [0, 2]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.ReportsDir)
	require.Equal(t, []int{0, 2}, cfg.ImportantArgs)
	require.Equal(t, path, cfg.Source())

	require.True(t, cfg.MatchesTarget("t.main"))
	require.False(t, cfg.MatchesTarget("other.main"))
	require.True(t, cfg.Allowlisted("t.trusted"))
	require.False(t, cfg.Allowlisted("t.trustedX"))
	require.True(t, cfg.TrustedStdlibMember("strings.Repeat"))
	require.False(t, cfg.TrustedStdlibMember("os.ReadFile"))
}

func TestLoadToml(t *testing.T) {
	path := writeConfig(t, "pear.toml", `
reports-dir = "out"
log-level = 4
allowlist = ["^t\\.trusted$"]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.ReportsDir)
	require.Equal(t, 4, cfg.LogLevel)
	require.True(t, cfg.Allowlisted("t.trusted"))
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "pear.json", `{}`)
	_, err := config.Load(path)
	require.ErrorContains(t, err, "unsupported config extension")
}

func TestLoadRejectsBadRegex(t *testing.T) {
	path := writeConfig(t, "pear.yaml", `
target-filter: "("
`)
	_, err := config.Load(path)
	require.ErrorContains(t, err, "invalid target-filter")
}

func TestProgrammaticConfigMatchesWithoutLoad(t *testing.T) {
	cfg := config.NewDefault()
	cfg.TargetFilter = `^t\.`
	cfg.Allowlist = []string{`^t\.trusted$`}
	cfg.TrustedStdlib = []string{`^strings\.`}

	require.True(t, cfg.Allowlisted("t.trusted"))
	require.False(t, cfg.Allowlisted("t.other"))
	require.True(t, cfg.TrustedStdlibMember("strings.Repeat"))
	require.True(t, cfg.MatchesTarget("t.main"))
	require.False(t, cfg.MatchesTarget("other.main"))
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	cfg := config.NewDefault()
	require.True(t, cfg.MatchesTarget("anything.at.all"))
	require.False(t, cfg.Allowlisted("anything.at.all"))
}

func TestReportPathIsSanitized(t *testing.T) {
	cfg := config.NewDefault()
	cfg.ReportsDir = filepath.Join(t.TempDir(), "reports")
	path, err := cfg.ReportPath("(*t.Widget).Render[int]", ".usage.pear.json")
	require.NoError(t, err)
	require.Equal(t, "_t.Widget_.Render_int_.usage.pear.json", filepath.Base(path))
	require.DirExists(t, cfg.ReportsDir)
}
