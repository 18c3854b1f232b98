package formats

import (
	"encoding/json"
	"strings"
	"testing"

	"reachgraph/internal/engine/analysis"
)

func TestGenerateSARIF_EmptyResults(t *testing.T) {
	data, err := GenerateSARIF("", &analysis.Result{Converged: true})
	if err != nil {
		t.Fatalf("GenerateSARIF returned error: %v", err)
	}
	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.Schema != sarifSchema {
		t.Errorf("$schema = %q, want %q", report.Schema, sarifSchema)
	}
	if report.Version != sarifVersion {
		t.Errorf("version = %q, want %q", report.Version, sarifVersion)
	}
	if len(report.Runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(report.Runs))
	}
	if len(report.Runs[0].Results) != 0 {
		t.Errorf("expected 0 results, got %d", len(report.Runs[0].Results))
	}
	if len(report.Runs[0].Tool.Driver.Rules) != 0 {
		t.Errorf("expected no rules without findings, got %d", len(report.Runs[0].Tool.Driver.Rules))
	}
}

func TestGenerateSARIF_Findings(t *testing.T) {
	data, err := GenerateSARIF("/project", sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	results := report.Runs[0].Results
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	ke := results[0]
	if ke.RuleID != ruleIDKeyError || ke.Level != "warning" {
		t.Errorf("unexpected key error result: %+v", ke)
	}
	if !strings.Contains(ke.Message.Text, `"b"`) {
		t.Errorf("message %q does not name the key", ke.Message.Text)
	}
	if len(ke.Locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(ke.Locations))
	}
	loc := ke.Locations[0].PhysicalLocation
	if loc.ArtifactLocation.URI != "main.py" {
		t.Errorf("uri = %q, want main.py", loc.ArtifactLocation.URI)
	}
	if loc.Region == nil || loc.Region.StartLine != 7 {
		t.Errorf("expected start line 7, got %+v", loc.Region)
	}

	cycle := results[1]
	if cycle.RuleID != ruleIDImportCycle {
		t.Errorf("ruleId = %q, want %q", cycle.RuleID, ruleIDImportCycle)
	}
	if !strings.Contains(cycle.Message.Text, "main → mod → main") {
		t.Errorf("unexpected cycle message %q", cycle.Message.Text)
	}

	if len(report.Runs[0].Tool.Driver.Rules) != 2 {
		t.Errorf("expected 2 rules, got %d", len(report.Runs[0].Tool.Driver.Rules))
	}
	if report.Runs[0].Tool.Driver.Name != "reachgraph" {
		t.Errorf("driver name = %q", report.Runs[0].Tool.Driver.Name)
	}
}

func TestGenerateSARIF_IterationCap(t *testing.T) {
	data, err := GenerateSARIF("", &analysis.Result{Iterations: 3, Converged: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	results := report.Runs[0].Results
	if len(results) != 1 || results[0].RuleID != ruleIDNoFixpoint {
		t.Fatalf("expected one %s result, got %+v", ruleIDNoFixpoint, results)
	}
}

func TestGenerateSARIF_NilResult(t *testing.T) {
	if _, err := GenerateSARIF("", nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestRelativeURI(t *testing.T) {
	cases := []struct {
		root, path, want string
	}{
		{"/project", "/project/pkg/mod.py", "pkg/mod.py"},
		{"", "/project/pkg/mod.py", "/project/pkg/mod.py"},
		{"/project", "pkg/mod.py", "pkg/mod.py"},
	}
	for _, tc := range cases {
		if got := relativeURI(tc.root, tc.path); got != tc.want {
			t.Errorf("relativeURI(%q, %q) = %q, want %q", tc.root, tc.path, got, tc.want)
		}
	}
}
