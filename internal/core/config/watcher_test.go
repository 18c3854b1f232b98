package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("REACHGRAPH_ANALYSIS_OPERATION", OperationKeyError)
	path := writeConfig(t, "[analysis]\nmax_iter = 1\n")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// let the watch register before writing
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[analysis]\nmax_iter = 4\noperation = \"call-graph\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 4, cfg.Analysis.MaxIterations())
		assert.Equal(t, OperationKeyError, cfg.Analysis.Operation, "environment wins over the file")
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
