package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src", "demo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Analysis.EntryPoints = []string{"src/demo/main.py"}
	cfg.Analysis.PackageRoot = "src"
	cfg.Output.JSON = "cg.json"

	got, err := ResolvePaths(cfg, sub)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.DBPath != filepath.Join(root, ".reachgraph", "reachgraph.db") {
		t.Fatalf("unexpected db path: %q", got.DBPath)
	}
	if got.PackageRoot != filepath.Join(root, "src") {
		t.Fatalf("unexpected package root: %q", got.PackageRoot)
	}
	if len(got.EntryPoints) != 1 || got.EntryPoints[0] != filepath.Join(root, "src", "demo", "main.py") {
		t.Fatalf("unexpected entry points: %v", got.EntryPoints)
	}
	if got.JSONPath != filepath.Join(root, "cg.json") {
		t.Fatalf("unexpected json path: %q", got.JSONPath)
	}
	if got.DOTPath != "" {
		t.Fatalf("expected no dot path, got %q", got.DOTPath)
	}
}

func TestResolvePaths_AbsoluteOverrides(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, "custom", "runs.db")

	cfg := Default()
	cfg.Paths.ProjectRoot = root
	cfg.DB.Path = dbPath
	cfg.Output.Root = "reports"
	cfg.Output.DOT = "cg.dot"

	got, err := ResolvePaths(cfg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got.DBPath != dbPath {
		t.Fatalf("expected db path %q, got %q", dbPath, got.DBPath)
	}
	if got.DOTPath != filepath.Join(root, "reports", "cg.dot") {
		t.Fatalf("unexpected dot path: %q", got.DOTPath)
	}
}

func TestResolvePaths_EmptyCwd(t *testing.T) {
	if _, err := ResolvePaths(Default(), " "); err == nil {
		t.Fatal("expected error for empty cwd")
	}
}

func TestResolveRelative(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "base")
	cases := map[string]string{
		"":          base,
		"a/b":       filepath.Join(base, "a", "b"),
		"../c":      filepath.Join(string(filepath.Separator), "c"),
		string(filepath.Separator) + "abs": string(filepath.Separator) + "abs",
	}
	for in, want := range cases {
		if got := ResolveRelative(base, in); got != want {
			t.Errorf("ResolveRelative(%q, %q) = %q, want %q", base, in, got, want)
		}
	}
}
