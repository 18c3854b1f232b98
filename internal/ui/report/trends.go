package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reachgraph/internal/data/store"
)

// RenderRunHistoryTSV lists stored runs oldest first with the change of each
// count against the previous run.
func RenderRunHistoryTSV(runs []store.Run) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tRun\tOperation\tIterations\tConverged\tModules\tFunctions\tEdges\tKeyErrors\tDeltaModules\tDeltaFunctions\tDeltaEdges\tDeltaKeyErrors\n")
	var prev *store.Run
	for i := range runs {
		run := runs[i]
		var dMod, dFn, dEdge, dKey int
		if prev != nil {
			dMod = run.ModuleCount - prev.ModuleCount
			dFn = run.FunctionCount - prev.FunctionCount
			dEdge = run.EdgeCount - prev.EdgeCount
			dKey = run.KeyErrorCount - prev.KeyErrorCount
		}
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%d\t%t\t%d\t%d\t%d\t%d\t%+d\t%+d\t%+d\t%+d\n",
			run.Timestamp.UTC().Format(time.RFC3339),
			run.ID,
			run.Operation,
			run.Iterations,
			run.Converged,
			run.ModuleCount,
			run.FunctionCount,
			run.EdgeCount,
			run.KeyErrorCount,
			dMod, dFn, dEdge, dKey,
		))
		prev = &runs[i]
	}

	return []byte(buf.String()), nil
}

func RenderRunHistoryJSON(runs []store.Run) ([]byte, error) {
	return json.MarshalIndent(runs, "", "  ")
}
