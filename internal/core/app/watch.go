package app

import (
	"context"
	"log/slog"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/core/watcher"
)

// StartWatcher re-runs the analysis whenever a watched Python file changes.
// Each batch invalidates the changed sources, waits for the run limiter and
// then runs against a fresh orchestrator. It returns once watching has
// started; StopWatcher or ctx cancellation ends it.
func (a *App) StartWatcher(ctx context.Context) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watcher != nil {
		return errors.New(errors.CodeConflict, "watcher already running")
	}

	roots := a.WatchRoots()
	if len(roots) == 0 {
		return errors.New(errors.CodeNotFound, "nothing to watch")
	}

	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Exclude.Dirs, a.Config.Exclude.Files, func(paths []string) {
		a.handleChanges(ctx, paths)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, "create watcher")
	}
	if err := w.Watch(roots); err != nil {
		w.Close()
		return errors.Wrap(err, errors.CodeInternal, "watch source roots")
	}
	a.watcher = w
	slog.Info("watching for changes", "roots", roots)

	go func() {
		<-ctx.Done()
		a.StopWatcher()
	}()
	return nil
}

func (a *App) StopWatcher() {
	a.watchMu.Lock()
	w := a.watcher
	a.watcher = nil
	a.watchMu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}
}

func (a *App) handleChanges(ctx context.Context, paths []string) {
	slog.Info("change detected", "files", len(paths))
	a.sources.Invalidate(paths...)

	if err := a.limiter.Wait(ctx); err != nil {
		slog.Debug("re-run cancelled", "error", err)
		return
	}
	if _, err := a.RunOnce(ctx); err != nil {
		slog.Error("analysis failed", "error", err)
	}
}
