package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/shared/util"
	"reachgraph/internal/ui/report"
)

// GenerateOutputs writes every output whose path is configured. It stops
// at the first failure.
func (a *App) GenerateOutputs(res *analysis.Result) error {
	if res == nil {
		return fmt.Errorf("generate outputs: nil result")
	}
	targets := a.Paths

	if targets.JSONPath != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encode JSON output: %w", err)
		}
		if err := writeArtifact(targets.JSONPath, append(data, '\n')); err != nil {
			return fmt.Errorf("write JSON output %q: %w", targets.JSONPath, err)
		}
	}

	if targets.DOTPath != "" {
		dot, err := report.NewDOTGenerator(res).Generate()
		if err != nil {
			return fmt.Errorf("generate DOT output: %w", err)
		}
		if err := writeArtifact(targets.DOTPath, []byte(dot)); err != nil {
			return fmt.Errorf("write DOT output %q: %w", targets.DOTPath, err)
		}
	}

	if targets.TSVPath != "" {
		gen := report.NewTSVGenerator(res)
		out, err := gen.Generate()
		if err != nil {
			return fmt.Errorf("generate TSV output: %w", err)
		}
		if len(res.KeyErrors) > 0 {
			keyErrs, err := gen.GenerateKeyErrors()
			if err != nil {
				return fmt.Errorf("generate key error TSV: %w", err)
			}
			out += "\n" + keyErrs
		}
		if err := writeArtifact(targets.TSVPath, []byte(out)); err != nil {
			return fmt.Errorf("write TSV output %q: %w", targets.TSVPath, err)
		}
	}

	if targets.MermaidPath != "" {
		mermaid, err := report.NewMermaidGenerator(res).Generate()
		if err != nil {
			return fmt.Errorf("generate Mermaid output: %w", err)
		}
		if err := writeArtifact(targets.MermaidPath, []byte(mermaid)); err != nil {
			return fmt.Errorf("write Mermaid output %q: %w", targets.MermaidPath, err)
		}
	}

	if targets.SARIFPath != "" {
		data, err := report.GenerateSARIF(targets.ProjectRoot, res)
		if err != nil {
			return fmt.Errorf("generate SARIF output: %w", err)
		}
		if err := writeArtifact(targets.SARIFPath, data); err != nil {
			return fmt.Errorf("write SARIF output %q: %w", targets.SARIFPath, err)
		}
	}

	return nil
}

func writeArtifact(path string, data []byte) error {
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return err
	}
	slog.Debug("wrote output", "path", path, "bytes", len(data))
	return nil
}
