package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"reachgraph/internal/data/store"
	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/facts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSummary_CallGraph(t *testing.T) {
	res := &analysis.Result{
		Operation: analysis.OpCallGraph,
		Functions: []string{"main.run", "mod.greet"},
		Edges:     [][2]string{{"main", "main.run"}, {"main.run", "mod.greet"}},
		Modules: analysis.Modules{
			Internal: map[string]analysis.ModuleInfo{"main": {}, "mod": {}},
			External: map[string]analysis.ModuleInfo{"json": {}},
		},
		ImportCycles: [][]string{{"main", "mod"}},
		Latest:       &callgraph.EntryPoint{Name: "main", Module: "main"},
		Iterations:   2,
		Converged:    true,
	}

	out := RenderSummary(res, SummaryOptions{RunID: "run-1", Elapsed: 1500 * time.Millisecond})
	assert.Contains(t, out, "reachgraph call-graph")
	assert.Contains(t, out, "2 internal, 1 external")
	assert.Contains(t, out, "call edges:")
	assert.Contains(t, out, "reachable:")
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "latest entrypoint:")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "Import cycles (1)")
	assert.Contains(t, out, "main -> mod -> main")
	assert.NotContains(t, out, "Key errors")
}

func TestRenderSummary_KeyErrors(t *testing.T) {
	res := &analysis.Result{Operation: analysis.OpKeyError, Converged: false, Iterations: 4}
	for i := 0; i < maxListed+2; i++ {
		res.KeyErrors = append(res.KeyErrors, facts.KeyError{Filename: "main.py", Line: i + 1, Namespace: "main", Key: fmt.Sprintf("k%d", i)})
	}

	out := RenderSummary(res, SummaryOptions{})
	assert.Contains(t, out, "iteration cap reached")
	assert.Contains(t, out, fmt.Sprintf("Key errors (%d)", maxListed+2))
	assert.Contains(t, out, `main.py:1 main["k0"]`)
	assert.Contains(t, out, "... and 2 more")
	assert.NotContains(t, out, "call edges:")

	clean := RenderSummary(&analysis.Result{Operation: analysis.OpKeyError, Converged: true}, SummaryOptions{})
	assert.Contains(t, clean, "No key errors found")
}

func TestRenderSummary_Nil(t *testing.T) {
	assert.Empty(t, RenderSummary(nil, SummaryOptions{}))
}

func TestRenderRunHistoryTSV(t *testing.T) {
	base := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	runs := []store.Run{
		{ID: "a", Timestamp: base, Operation: "call-graph", Iterations: 2, Converged: true, ModuleCount: 3, FunctionCount: 5, EdgeCount: 7},
		{ID: "b", Timestamp: base.Add(time.Hour), Operation: "call-graph", Iterations: 3, Converged: true, ModuleCount: 4, FunctionCount: 5, EdgeCount: 6, KeyErrorCount: 1},
	}

	out, err := RenderRunHistoryTSV(runs)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Timestamp\tRun\t"))
	assert.Equal(t, "2026-02-13T00:00:00Z\ta\tcall-graph\t2\ttrue\t3\t5\t7\t0\t+0\t+0\t+0\t+0", lines[1])
	assert.Equal(t, "2026-02-13T01:00:00Z\tb\tcall-graph\t3\ttrue\t4\t5\t6\t1\t+1\t+0\t-1\t+1", lines[2])
}

func TestRenderRunHistoryJSON(t *testing.T) {
	out, err := RenderRunHistoryJSON([]store.Run{{ID: "a", Operation: "key-error"}})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a", decoded[0]["id"])
	assert.Equal(t, "key-error", decoded[0]["operation"])
}
