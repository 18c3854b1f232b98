package formats

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/shared/version"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDKeyError    = "RG001"
	ruleIDImportCycle = "RG002"
	ruleIDNoFixpoint  = "RG003"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

// GenerateSARIF reports key errors, import cycles and a fixed point that was
// cut short by the iteration cap. File URIs are relative to projectRoot.
func GenerateSARIF(projectRoot string, res *analysis.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("sarif: no analysis result")
	}
	results := make([]sarifResult, 0, len(res.KeyErrors)+len(res.ImportCycles))

	for _, ke := range res.KeyErrors {
		result := sarifResult{
			RuleID:  ruleIDKeyError,
			Level:   "warning",
			Message: sarifMessage{Text: fmt.Sprintf("Key %q may be missing from every dictionary reaching %s", ke.Key, ke.Namespace)},
		}
		if ke.Filename != "" {
			loc := fileLocation(projectRoot, ke.Filename)
			if ke.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: ke.Line}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}

	for _, cycle := range res.ImportCycles {
		if len(cycle) == 0 {
			continue
		}
		path := append(append([]string{}, cycle...), cycle[0])
		result := sarifResult{
			RuleID:  ruleIDImportCycle,
			Level:   "note",
			Message: sarifMessage{Text: fmt.Sprintf("Import cycle: %s", strings.Join(path, " → "))},
		}
		if node, ok := res.ImportGraph[cycle[0]]; ok && node.Filename != "" {
			result.Locations = []sarifLocation{fileLocation(projectRoot, node.Filename)}
		}
		results = append(results, result)
	}

	noFixpoint := !res.Converged && res.Iterations > 0
	if noFixpoint {
		results = append(results, sarifResult{
			RuleID:  ruleIDNoFixpoint,
			Level:   "note",
			Message: sarifMessage{Text: fmt.Sprintf("Analysis stopped after %d iterations without reaching a fixed point", res.Iterations)},
		})
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "reachgraph",
						Version: version.Version,
						Rules:   buildSARIFRules(len(res.KeyErrors) > 0, len(res.ImportCycles) > 0, noFixpoint),
					},
				},
				Results: results,
			},
		},
	}

	return json.MarshalIndent(report, "", "  ")
}

// buildSARIFRules returns only the rules that have findings.
func buildSARIFRules(keyErrors, cycles, noFixpoint bool) []sarifRule {
	rules := make([]sarifRule, 0, 3)
	if keyErrors {
		rules = append(rules, sarifRule{
			ID:               ruleIDKeyError,
			Name:             "PossibleKeyError",
			ShortDescription: sarifMessage{Text: "A dictionary subscript uses a key no reaching dictionary defines."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "warning"},
		})
	}
	if cycles {
		rules = append(rules, sarifRule{
			ID:               ruleIDImportCycle,
			Name:             "ImportCycle",
			ShortDescription: sarifMessage{Text: "Modules import each other in a cycle."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "note"},
		})
	}
	if noFixpoint {
		rules = append(rules, sarifRule{
			ID:               ruleIDNoFixpoint,
			Name:             "IterationCapReached",
			ShortDescription: sarifMessage{Text: "The iteration cap stopped the analysis before its facts stabilised."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "note"},
		})
	}
	return rules
}

func fileLocation(projectRoot, filePath string) sarifLocation {
	return sarifLocation{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{
				URI:       relativeURI(projectRoot, filePath),
				URIBaseID: "%SRCROOT%",
			},
		},
	}
}

// relativeURI converts an absolute path to a forward-slash URI anchored at
// projectRoot. Relative paths pass through.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(projectRoot, filePath); err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}
