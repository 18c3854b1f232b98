package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: REACHGRAPH_[SECTION]_[KEY] (e.g., REACHGRAPH_ANALYSIS_MAX_ITER).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "REACHGRAPH_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.StateDir, "REACHGRAPH_PATHS_STATE_DIR")

	// Analysis
	setEnvString(&cfg.Analysis.PackageRoot, "REACHGRAPH_ANALYSIS_PACKAGE_ROOT")
	setEnvString(&cfg.Analysis.Operation, "REACHGRAPH_ANALYSIS_OPERATION")
	setEnvList(&cfg.Analysis.SearchPaths, "REACHGRAPH_ANALYSIS_SEARCH_PATHS")
	if val, ok := os.LookupEnv("REACHGRAPH_ANALYSIS_MAX_ITER"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", "REACHGRAPH_ANALYSIS_MAX_ITER", "value", val)
			cfg.Analysis.MaxIter = &i
		}
	}

	// Output
	setEnvString(&cfg.Output.Root, "REACHGRAPH_OUTPUT_ROOT")
	setEnvString(&cfg.Output.JSON, "REACHGRAPH_OUTPUT_JSON")
	setEnvString(&cfg.Output.DOT, "REACHGRAPH_OUTPUT_DOT")
	setEnvString(&cfg.Output.SARIF, "REACHGRAPH_OUTPUT_SARIF")

	// Database
	setEnvBool(&cfg.DB.Enabled, "REACHGRAPH_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "REACHGRAPH_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "REACHGRAPH_DB_BUSY_TIMEOUT")
	setEnvInt(&cfg.DB.KeepRuns, "REACHGRAPH_DB_KEEP_RUNS")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "REACHGRAPH_WATCH_DEBOUNCE")
	setEnvInt(&cfg.Watch.RunsPerMin, "REACHGRAPH_WATCH_RUNS_PER_MINUTE")

	// Caches
	setEnvInt(&cfg.Caches.Sources, "REACHGRAPH_CACHES_SOURCES")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "REACHGRAPH_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "REACHGRAPH_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "REACHGRAPH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "REACHGRAPH_OBSERVABILITY_ENABLE_TRACING")
	setEnvBool(&cfg.Observability.EnableMetrics, "REACHGRAPH_OBSERVABILITY_ENABLE_METRICS")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits the value on the OS path list separator.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		var out []string
		for _, item := range strings.Split(val, string(os.PathListSeparator)) {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
