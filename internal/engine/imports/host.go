package imports

import (
	"fmt"
	"strings"
	"sync"

	"reachgraph/internal/core/errors"
)

// Placeholder is the inert value a load yields instead of running module
// code. Path is absolute, or empty for namespace packages and opaque
// modules. SearchLocations is non-nil for packages.
type Placeholder struct {
	Name            string
	Path            string
	SearchLocations []string
}

func (p Placeholder) IsPackage() bool {
	return p.SearchLocations != nil
}

// LocatedFunc is invoked by the host for every module it locates while an
// interception session is active.
type LocatedFunc func(name, path string)

// HostConfig is the replaceable lookup configuration of a Host.
type HostConfig struct {
	SearchPath []string
	Finders    []Finder
	OnLocated  LocatedFunc
}

func (c HostConfig) clone() HostConfig {
	out := HostConfig{OnLocated: c.OnLocated}
	out.SearchPath = append([]string(nil), c.SearchPath...)
	out.Finders = append([]Finder(nil), c.Finders...)
	return out
}

// Host is the process-wide module lookup machinery: the search path, the
// finder chain, the registry of located modules and a finder cache. Loads
// locate every parent package before the module itself and never execute
// anything.
//
// Only one interception session may own a Host at a time.
type Host struct {
	mu       sync.Mutex
	cfg      HostConfig
	registry map[string]Placeholder
	cache    map[string]Placeholder
	missing  map[string]bool
	owner    any
}

var defaultHost = NewHost()

// DefaultHost returns the process-wide host.
func DefaultHost() *Host {
	return defaultHost
}

func NewHost() *Host {
	return &Host{
		cfg: HostConfig{
			Finders: []Finder{NewFileFinder(), StdlibFinder{}},
		},
		registry: make(map[string]Placeholder),
		cache:    make(map[string]Placeholder),
		missing:  make(map[string]bool),
	}
}

// SetSearchPath replaces the base search path, e.g. with site-packages
// directories. It fails while a session owns the host.
func (h *Host) SetSearchPath(paths []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner != nil {
		return errors.New(errors.CodeConflict, "module lookup host is intercepted")
	}
	h.cfg.SearchPath = append([]string(nil), paths...)
	return nil
}

// Config returns a copy of the current lookup configuration.
func (h *Host) Config() HostConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.clone()
}

// Intercepted reports whether a session currently owns the host.
func (h *Host) Intercepted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner != nil
}

// acquire hands the host to owner, applying mutate to the configuration and
// returning the configuration it replaced.
func (h *Host) acquire(owner any, mutate func(cfg *HostConfig)) (HostConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner != nil && h.owner != owner {
		return HostConfig{}, errors.New(errors.CodeConflict, "module lookup host is already intercepted")
	}
	saved := h.cfg.clone()
	next := h.cfg.clone()
	mutate(&next)
	h.cfg = next
	h.owner = owner
	return saved, nil
}

// release restores saved if owner holds the host.
func (h *Host) release(owner any, saved HostConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner != owner {
		return
	}
	h.cfg = saved.clone()
	h.owner = nil
}

// InvalidateCaches drops every cached finder result.
func (h *Host) InvalidateCaches() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[string]Placeholder)
	h.missing = make(map[string]bool)
}

// Forget removes names from the registry so the next load locates them again.
func (h *Host) Forget(names ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range names {
		delete(h.registry, name)
	}
}

// Known returns the registry entry for name.
func (h *Host) Known(name string) (Placeholder, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ph, ok := h.registry[name]
	return ph, ok
}

// Load locates the absolute dotted name, parents first. Every newly located
// module is registered and reported to the configured LocatedFunc.
func (h *Host) Load(name string) (Placeholder, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return Placeholder{}, errors.New(errors.CodeValidationError, fmt.Sprintf("invalid module name %q", name))
	}

	parts := strings.Split(name, ".")
	var parent *Placeholder
	var ph Placeholder
	for i := range parts {
		prefix := strings.Join(parts[:i+1], ".")
		located, err := h.locate(prefix, parent)
		if err != nil {
			return Placeholder{}, err
		}
		ph = located
		parent = &located
	}
	return ph, nil
}

func (h *Host) locate(name string, parent *Placeholder) (Placeholder, error) {
	h.mu.Lock()
	if ph, ok := h.registry[name]; ok {
		h.mu.Unlock()
		return ph, nil
	}

	var locations []string
	if parent == nil {
		locations = h.cfg.SearchPath
	} else {
		if !parent.IsPackage() {
			h.mu.Unlock()
			return Placeholder{}, errors.New(errors.CodeNotFound, fmt.Sprintf("%s is not a package", parent.Name))
		}
		locations = parent.SearchLocations
	}

	ph, found := h.cache[name]
	if !found && !h.missing[name] {
		for _, finder := range h.cfg.Finders {
			if ph, found = finder.Find(name, locations); found {
				break
			}
		}
		if found {
			h.cache[name] = ph
		} else {
			h.missing[name] = true
		}
	}
	if !found {
		h.mu.Unlock()
		return Placeholder{}, errors.New(errors.CodeNotFound, fmt.Sprintf("no module named %q", name))
	}

	h.registry[name] = ph
	onLocated := h.cfg.OnLocated
	h.mu.Unlock()

	if onLocated != nil {
		onLocated(name, ph.Path)
	}
	return ph, nil
}
