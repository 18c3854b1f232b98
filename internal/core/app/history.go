package app

import (
	"log/slog"
	"time"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/data/store"
)

// RunHistory loads the stored runs of this project since the given time.
func (a *App) RunHistory(since time.Time) ([]store.Run, error) {
	if a.store == nil {
		return nil, errors.New(errors.CodeConfiguration, "run store is disabled")
	}
	return a.store.LoadRuns(a.ProjectKey(), since)
}

// PruneHistory keeps the newest keep runs of this project.
func (a *App) PruneHistory(keep int) (int64, error) {
	if a.store == nil {
		return 0, errors.New(errors.CodeConfiguration, "run store is disabled")
	}
	return a.store.Prune(a.ProjectKey(), keep)
}

// pruneRuns applies db.keep_runs after a run was stored.
func (a *App) pruneRuns() {
	keep := a.Config.DB.KeepRuns
	if keep <= 0 {
		return
	}
	deleted, err := a.PruneHistory(keep)
	if err != nil {
		slog.Warn("failed to prune run history", "keep", keep, "error", err)
		return
	}
	if deleted > 0 {
		slog.Debug("pruned run history", "deleted", deleted, "keep", keep)
	}
}
