// Package config loads reachgraph.toml, applies defaults and environment
// overrides, validates the result and resolves relative paths.
package config

import (
	"time"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	Exclude       Exclude       `toml:"exclude"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Caches        Caches        `toml:"caches"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
}

// Analysis is the run configuration: entry files or directories, the
// package root separating internal from external modules, the fixed-point
// iteration cap (negative for none) and the terminal operation.
type Analysis struct {
	EntryPoints []string `toml:"entry_points"`
	PackageRoot string   `toml:"package_root"`
	MaxIter     *int     `toml:"max_iter"`
	Operation   string   `toml:"operation"`
	SearchPaths []string `toml:"search_paths"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Output struct {
	Root    string `toml:"root"`
	JSON    string `toml:"json"`
	DOT     string `toml:"dot"`
	TSV     string `toml:"tsv"`
	Mermaid string `toml:"mermaid"`
	SARIF   string `toml:"sarif"`
	Summary *bool  `toml:"summary"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	// KeepRuns bounds the stored history per project. Negative keeps every run.
	KeepRuns int `toml:"keep_runs"`
}

type Watch struct {
	Debounce   time.Duration `toml:"debounce"`
	RunsPerMin int           `toml:"runs_per_minute"`
}

type Caches struct {
	Sources int `toml:"sources"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// MaxIterations returns the iteration cap, -1 when unbounded.
func (a Analysis) MaxIterations() int {
	if a.MaxIter == nil {
		return -1
	}
	return *a.MaxIter
}

func (o Output) SummaryEnabled() bool {
	return o.Summary == nil || *o.Summary
}
