// Package app wires configuration, the analysis engine, outputs, the run
// store and watch mode into one runnable unit.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reachgraph/internal/core/config"
	"reachgraph/internal/core/errors"
	"reachgraph/internal/core/watcher"
	"reachgraph/internal/data/store"
	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/engine/imports"
	"reachgraph/internal/engine/parser"
	"reachgraph/internal/shared/util"
	"reachgraph/internal/ui/report"
)

// Update is emitted after every completed run.
type Update struct {
	Result  *analysis.Result
	RunID   string
	Elapsed time.Duration
	Err     error
}

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	sources *parser.Cache
	store   *store.Store
	limiter *util.RunLimiter
	out     io.Writer

	runMu     sync.Mutex
	last      *analysis.Result
	lastRunID string
	lastErr   error
	lastAt    time.Time

	updateMu sync.RWMutex
	onUpdate func(Update)

	watchMu sync.Mutex
	watcher *watcher.Watcher
}

// New prepares the shared parse cache and, when enabled, opens the run
// store. Close releases both.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeConfiguration, "app: nil configuration")
	}

	a := &App{
		Config:  cfg,
		Paths:   paths,
		sources: parser.NewCache(cfg.Caches.Sources),
		out:     os.Stdout,
	}

	if cfg.DB.Enabled {
		st, err := store.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			a.sources.Close()
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeInternal, "open run store"),
				errors.CtxPath, paths.DBPath,
			)
		}
		a.store = st
	}

	a.limiter = util.NewRunLimiter(cfg.Watch.RunsPerMin)

	return a, nil
}

// SetOutput redirects the summary. A nil writer silences it.
func (a *App) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	a.out = w
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// Store returns the run store, nil when persistence is disabled.
func (a *App) Store() *store.Store {
	return a.store
}

func (a *App) LastResult() *analysis.Result {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.last
}

// ProjectKey names the project in the run store.
func (a *App) ProjectKey() string {
	if a.Paths.ProjectRoot == "" {
		return "default"
	}
	return filepath.Base(a.Paths.ProjectRoot)
}

// Analyze runs one analysis over the discovered entry points without
// producing any output.
func (a *App) Analyze(ctx context.Context) (*analysis.Result, error) {
	entries, err := a.Entries()
	if err != nil {
		return nil, err
	}

	host := imports.NewHost()
	if len(a.Paths.SearchPaths) > 0 {
		if err := host.SetSearchPath(a.Paths.SearchPaths); err != nil {
			return nil, err
		}
	}

	orch := analysis.New(
		entries,
		a.Paths.PackageRoot,
		a.Config.Analysis.MaxIterations(),
		analysis.Operation(a.Config.Analysis.Operation),
	).WithHost(host).WithSources(a.sources)

	slog.Debug("starting analysis", "entries", len(entries), "package", a.Paths.PackageRoot, "operation", a.Config.Analysis.Operation)
	if err := orch.Analyze(ctx); err != nil {
		return nil, err
	}
	return orch.Result(), nil
}

// RunOnce analyzes, writes every configured output, stores the run and
// prints the summary. Runs are serialized.
func (a *App) RunOnce(ctx context.Context) (*analysis.Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	started := time.Now()
	res, err := a.Analyze(ctx)
	if err != nil {
		a.lastErr = err
		a.emitUpdate(Update{Err: err, Elapsed: time.Since(started)})
		return nil, err
	}

	if err := a.GenerateOutputs(res); err != nil {
		slog.Error("failed to generate outputs", "error", err)
	}

	runID := ""
	if a.store != nil {
		run, err := a.store.SaveRun(a.ProjectKey(), a.Paths.PackageRoot, started, res)
		if err != nil {
			slog.Warn("failed to store run", "path", a.store.Path(), "error", err)
		} else {
			runID = run.ID
			slog.Debug("stored run", "id", run.ID)
			a.pruneRuns()
		}
	}

	elapsed := time.Since(started)
	if a.Config.Output.SummaryEnabled() {
		if _, err := io.WriteString(a.out, report.RenderSummary(res, report.SummaryOptions{Elapsed: elapsed, RunID: runID})); err != nil {
			slog.Debug("failed to write summary", "error", err)
		}
	}

	a.last = res
	a.lastRunID = runID
	a.lastErr = nil
	a.lastAt = time.Now()
	a.emitUpdate(Update{Result: res, RunID: runID, Elapsed: elapsed})
	return res, nil
}

func (a *App) Close() error {
	a.StopWatcher()
	if a.sources != nil {
		a.sources.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Reload swaps in a new configuration between runs. The run store and the
// parse cache are kept.
func (a *App) Reload(cfg *config.Config, paths config.ResolvedPaths) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.limiter.SetRate(cfg.Watch.RunsPerMin)
	a.Config = cfg
	a.Paths = paths
}
