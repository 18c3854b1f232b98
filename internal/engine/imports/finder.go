package imports

import (
	"os"
	"path/filepath"
	"strings"
)

const initFile = "__init__.py"

// Finder locates a single module. locations is the host search path for top
// level names and the parent's SearchLocations for submodules.
type Finder interface {
	Find(name string, locations []string) (Placeholder, bool)
}

// FileFinder locates source modules and packages on disk without reading
// them. Regular packages and modules win over namespace portions, which are
// only returned when no location holds either.
type FileFinder struct {
	Suffixes []string
}

func NewFileFinder() *FileFinder {
	return &FileFinder{Suffixes: []string{".py"}}
}

func (f *FileFinder) Find(name string, locations []string) (Placeholder, bool) {
	tail := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		tail = name[i+1:]
	}
	if tail == "" {
		return Placeholder{}, false
	}

	var portions []string
	for _, dir := range locations {
		candidate := filepath.Join(dir, tail)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			init := filepath.Join(candidate, initFile)
			if isFile(init) {
				return Placeholder{Name: name, Path: init, SearchLocations: []string{candidate}}, true
			}
			portions = append(portions, candidate)
		}
		for _, suffix := range f.Suffixes {
			if file := candidate + suffix; isFile(file) {
				return Placeholder{Name: name, Path: file}, true
			}
		}
	}

	if len(portions) > 0 {
		return Placeholder{Name: name, SearchLocations: portions}, true
	}
	return Placeholder{}, false
}

// StdlibFinder locates standard library and builtin modules as opaque
// packages without a file.
type StdlibFinder struct{}

func (StdlibFinder) Find(name string, _ []string) (Placeholder, bool) {
	if !IsStdlibModule(name) {
		return Placeholder{}, false
	}
	return Placeholder{Name: name, SearchLocations: []string{}}, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
