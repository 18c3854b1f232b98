package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reachgraph/internal/core/errors"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// DefaultFile is the configuration file looked up in the project root.
const DefaultFile = "reachgraph.toml"

const (
	OperationCallGraph = "call-graph"
	OperationKeyError  = "key-error"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.AddContext(errors.Wrap(errs[0], errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	return &cfg, nil
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".reachgraph"
	}

	if strings.TrimSpace(cfg.Analysis.Operation) == "" {
		cfg.Analysis.Operation = OperationCallGraph
	}
	if cfg.Analysis.MaxIter == nil {
		unbounded := -1
		cfg.Analysis.MaxIter = &unbounded
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "venv", ".tox", "node_modules"}
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "reachgraph.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if cfg.DB.KeepRuns == 0 {
		cfg.DB.KeepRuns = 100
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RunsPerMin <= 0 {
		cfg.Watch.RunsPerMin = 30
	}

	if cfg.Caches.Sources <= 0 {
		cfg.Caches.Sources = 512
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
}

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error
	if err := validateVersion(cfg); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateAnalysis(cfg)...)
	errs = append(errs, validateExclude(cfg)...)
	if err := validateOutput(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateObservability(cfg); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateAnalysis(cfg *Config) []error {
	var errs []error
	switch strings.TrimSpace(cfg.Analysis.Operation) {
	case OperationCallGraph, OperationKeyError:
	default:
		errs = append(errs, fmt.Errorf("analysis.operation must be one of: %s, %s; got %q",
			OperationCallGraph, OperationKeyError, cfg.Analysis.Operation))
	}
	for i, entry := range cfg.Analysis.EntryPoints {
		if strings.TrimSpace(entry) == "" {
			errs = append(errs, fmt.Errorf("analysis.entry_points[%d] must not be empty", i))
		}
	}
	for i, dir := range cfg.Analysis.SearchPaths {
		info, err := os.Stat(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("analysis.search_paths[%d] %q does not exist", i, dir))
			continue
		}
		if !info.IsDir() {
			errs = append(errs, fmt.Errorf("analysis.search_paths[%d] %q is not a directory", i, dir))
		}
	}
	return errs
}

func validateExclude(cfg *Config) []error {
	var errs []error
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("exclude.dirs[%d] %q: %v", i, pattern, err))
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("exclude.files[%d] %q: %v", i, pattern, err))
		}
	}
	return errs
}

func validateOutput(cfg *Config) error {
	targets := []struct {
		key  string
		path string
	}{
		{"output.json", cfg.Output.JSON},
		{"output.dot", cfg.Output.DOT},
		{"output.tsv", cfg.Output.TSV},
		{"output.mermaid", cfg.Output.Mermaid},
		{"output.sarif", cfg.Output.SARIF},
	}
	seen := make(map[string]string, len(targets))
	for _, target := range targets {
		path := strings.TrimSpace(target.path)
		if path == "" {
			continue
		}
		if prev, ok := seen[path]; ok {
			return fmt.Errorf("output conflict: %s and %s share the same path %q", prev, target.key, path)
		}
		seen[path] = target.key
	}

	dotPath := strings.TrimSpace(cfg.Output.DOT)
	if dotPath != "" && filepath.Ext(dotPath) != ".dot" && filepath.Ext(dotPath) != ".gv" {
		return fmt.Errorf("output.dot %q must end in .dot or .gv", dotPath)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Port < 0 || cfg.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be between 0 and 65535, got %d", cfg.Observability.Port)
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}
