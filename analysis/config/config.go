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

// Package config implements the configuration of the pear analyses: which
// units are trusted, which argument positions are sensitive, where reports
// go, and how verbose the tool is.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename.
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig.
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the user-facing settings of an analysis run. If some field
// is not defined in the config file, it will be empty/zero in the struct.
// Private fields are not populated from the file but computed after
// initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// Allowlist lists regexes of definition paths that the purity analysis
	// trusts unconditionally.
	Allowlist []string `yaml:"allowlist" toml:"allowlist"`

	// TrustedStdlib lists regexes of standard-library definition paths that
	// are trusted as long as the member has no writable receiver.
	TrustedStdlib []string `yaml:"trusted-stdlib" toml:"trusted-stdlib"`

	// ImportantArgs lists the 0-based argument positions of a root considered
	// sensitive. When empty, every argument is considered sensitive.
	ImportantArgs []int `yaml:"important-args" toml:"important-args"`

	compileOnce          sync.Once
	allowlistRegexes     []*regexp.Regexp
	trustedStdlibRegexes []*regexp.Regexp
	targetFilterRegex    *regexp.Regexp
}

// Options are the scalar settings of a run.
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If
	// unset, reports are written under "pear-reports" in the working
	// directory.
	ReportsDir string `yaml:"reports-dir" toml:"reports-dir"`

	// TargetFilter narrows the set of analysis roots to those whose
	// definition path matches this regex.
	TargetFilter string `yaml:"target-filter" toml:"target-filter"`

	// DumpBodies writes the body of every unit retrieved during the purity
	// analysis under the reports directory for audit.
	DumpBodies bool `yaml:"dump-bodies" toml:"dump-bodies"`

	// LogLevel controls the verbosity of the tool.
	LogLevel int `yaml:"log-level" toml:"log-level"`

	// SilenceWarn suppresses warnings.
	SilenceWarn bool `yaml:"silence-warn" toml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			ReportsDir: "pear-reports",
			LogLevel:   int(InfoLevel),
		},
	}
}

// Load reads a config from a yaml or toml file, depending on the extension.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
	}
	cfg := NewDefault()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("could not parse yaml config %s: %w", filename, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("could not parse toml config %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (expected .yaml, .yml or .toml)", ext)
	}
	cfg.sourceFile = filename
	if err := cfg.Compile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Compile builds the matchers from the configured patterns, once. Load calls
// it to surface pattern errors; configs assembled in code get it implicitly on
// the first match query, so patterns must be in place before that.
func (c *Config) Compile() error {
	var err error
	c.compileOnce.Do(func() { err = c.compile() })
	return err
}

func (c *Config) compile() error {
	var err error
	if c.TargetFilter != "" {
		c.targetFilterRegex, err = regexp.Compile(c.TargetFilter)
		if err != nil {
			return fmt.Errorf("invalid target-filter %q: %w", c.TargetFilter, err)
		}
	}
	c.allowlistRegexes, err = compileAll(c.Allowlist)
	if err != nil {
		return fmt.Errorf("invalid allowlist entry: %w", err)
	}
	c.trustedStdlibRegexes, err = compileAll(c.TrustedStdlib)
	if err != nil {
		return fmt.Errorf("invalid trusted-stdlib entry: %w", err)
	}
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		res = append(res, r)
	}
	return res, nil
}

// Source returns the file this config was loaded from, if any.
func (c *Config) Source() string {
	return c.sourceFile
}

// MatchesTarget reports whether the definition path passes the target filter.
// An absent filter matches everything.
func (c *Config) MatchesTarget(defPath string) bool {
	_ = c.Compile()
	if c.targetFilterRegex == nil {
		return true
	}
	return c.targetFilterRegex.MatchString(defPath)
}

// Allowlisted reports whether the definition path is allowlisted.
func (c *Config) Allowlisted(defPath string) bool {
	_ = c.Compile()
	return matchesAny(c.allowlistRegexes, defPath)
}

// TrustedStdlibMember reports whether the definition path is a trusted
// standard-library member.
func (c *Config) TrustedStdlibMember(defPath string) bool {
	_ = c.Compile()
	return matchesAny(c.trustedStdlibRegexes, defPath)
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, r := range res {
		if r.MatchString(s) {
			return true
		}
	}
	return false
}

// ReportPath returns the path of a report file for the given root definition
// path, creating the reports directory if needed. The filename is derived
// deterministically from the definition path.
func (c *Config) ReportPath(defPath string, suffix string) (string, error) {
	dir := c.ReportsDir
	if dir == "" {
		dir = "pear-reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create reports dir %s: %w", dir, err)
	}
	return filepath.Join(dir, SanitizeDefPath(defPath)+suffix), nil
}

var defPathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeDefPath turns a definition path into a filename-friendly string.
func SanitizeDefPath(defPath string) string {
	return defPathSanitizer.ReplaceAllString(defPath, "_")
}
