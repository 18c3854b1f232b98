package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/shared/util"

	"github.com/gobwas/glob"
)

const sourceExt = ".py"

// Entries expands the configured entry points into Python files.
func (a *App) Entries() ([]string, error) {
	if len(a.Paths.EntryPoints) == 0 {
		return nil, errors.New(errors.CodeValidationError, "no entry points configured")
	}
	files, err := DiscoverEntries(a.Paths.EntryPoints, a.Config.Exclude.Dirs, a.Config.Exclude.Files)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no Python files found under the entry points")
	}
	return files, nil
}

// DiscoverEntries returns the absolute, sorted, de-duplicated set of Python
// files named by paths. Files are taken as given; directories are walked
// with the exclusion globs applied to base names.
func DiscoverEntries(paths, excludeDirs, excludeFiles []string) ([]string, error) {
	dirGlobs, err := compileGlobs(excludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(excludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "resolve entry path")
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "entry point"), errors.CtxPath, abs)
		}
		if !info.IsDir() {
			add(filepath.Clean(abs))
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != abs && matchAny(dirGlobs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(base), sourceExt) || matchAny(fileGlobs, base) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "scan entry directory"), errors.CtxPath, abs)
		}
	}

	sort.Strings(files)
	return files, nil
}

// WatchRoots returns the directories to watch: entry directories, the
// directories of entry files and the package root, without nested
// duplicates.
func (a *App) WatchRoots() []string {
	candidates := make([]string, 0, len(a.Paths.EntryPoints)+1)
	for _, entry := range a.Paths.EntryPoints {
		info, err := os.Stat(entry)
		if err != nil {
			continue
		}
		if info.IsDir() {
			candidates = append(candidates, entry)
		} else {
			candidates = append(candidates, filepath.Dir(entry))
		}
	}
	if a.Paths.PackageRoot != "" {
		candidates = append(candidates, a.Paths.PackageRoot)
	}
	return uniqueRoots(candidates)
}

func uniqueRoots(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			cleaned = append(cleaned, filepath.Clean(abs))
		}
	}
	sort.Strings(cleaned)

	out := make([]string, 0, len(cleaned))
	for _, p := range cleaned {
		covered := false
		for _, kept := range out {
			if util.IsWithinDir(p, kept) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

func compileGlobs(patterns []string, kind string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", kind, p))
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
