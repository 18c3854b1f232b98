package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	StateDir    string
	PackageRoot string
	DBPath      string
	OutputRoot  string
	JSONPath    string
	DOTPath     string
	TSVPath     string
	MermaidPath string
	SARIFPath   string
	EntryPoints []string
	SearchPaths []string
}

// ResolvePaths makes every configured path absolute. Relative paths are
// resolved against the project root, which defaults to the nearest
// directory above cwd holding a project marker.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		root, err := DetectProjectRoot([]string{cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	stateDir := ResolveRelative(projectRoot, cfg.Paths.StateDir)

	dbPath := strings.TrimSpace(cfg.DB.Path)
	if filepath.IsAbs(dbPath) {
		dbPath = filepath.Clean(dbPath)
	} else {
		dbPath = filepath.Join(stateDir, dbPath)
	}

	outputRoot := strings.TrimSpace(cfg.Output.Root)
	if outputRoot == "" {
		outputRoot = projectRoot
	} else {
		outputRoot = ResolveRelative(projectRoot, outputRoot)
	}

	resolved := ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		StateDir:    filepath.Clean(stateDir),
		DBPath:      filepath.Clean(dbPath),
		OutputRoot:  filepath.Clean(outputRoot),
	}
	if pkg := strings.TrimSpace(cfg.Analysis.PackageRoot); pkg != "" {
		resolved.PackageRoot = ResolveRelative(projectRoot, pkg)
	}
	if out := strings.TrimSpace(cfg.Output.JSON); out != "" {
		resolved.JSONPath = ResolveRelative(outputRoot, out)
	}
	if out := strings.TrimSpace(cfg.Output.DOT); out != "" {
		resolved.DOTPath = ResolveRelative(outputRoot, out)
	}
	if out := strings.TrimSpace(cfg.Output.TSV); out != "" {
		resolved.TSVPath = ResolveRelative(outputRoot, out)
	}
	if out := strings.TrimSpace(cfg.Output.Mermaid); out != "" {
		resolved.MermaidPath = ResolveRelative(outputRoot, out)
	}
	if out := strings.TrimSpace(cfg.Output.SARIF); out != "" {
		resolved.SARIFPath = ResolveRelative(outputRoot, out)
	}
	for _, entry := range cfg.Analysis.EntryPoints {
		resolved.EntryPoints = append(resolved.EntryPoints, ResolveRelative(projectRoot, entry))
	}
	for _, dir := range cfg.Analysis.SearchPaths {
		resolved.SearchPaths = append(resolved.SearchPaths, ResolveRelative(projectRoot, dir))
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate looking for a project
// marker and falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFile,
		"pyproject.toml",
		"setup.py",
		"setup.cfg",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
