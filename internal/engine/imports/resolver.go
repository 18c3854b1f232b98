// Package imports discovers the module import graph of a Python program
// without executing it. Module loading goes through a lookup Host; while an
// interception session is installed the host reports every located module
// back to the Resolver, which records it as an import edge of the module
// currently under analysis.
package imports

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/shared/observability"
	"reachgraph/internal/shared/util"
)

// ModuleNode is the exported view of an import graph node.
type ModuleNode struct {
	Filename string   `json:"filename"`
	Imports  []string `json:"imports"`
}

type moduleNode struct {
	filename string
	imports  map[string]struct{}
}

type Resolver struct {
	host  *Host
	graph map[string]*moduleNode

	currentModule string
	inputFile     string
	modDir        string

	installed bool
	saved     HostConfig
}

// NewResolver returns a resolver bound to the process-wide host.
func NewResolver() *Resolver {
	return NewResolverWithHost(DefaultHost())
}

func NewResolverWithHost(h *Host) *Resolver {
	return &Resolver{
		host:  h,
		graph: make(map[string]*moduleNode),
	}
}

// SetPackage sets the directory separating internal from external modules.
func (r *Resolver) SetPackage(dir string) {
	if dir == "" {
		r.modDir = ""
		return
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	r.modDir = filepath.Clean(dir)
}

// Package returns the configured package root.
func (r *Resolver) Package() string {
	return r.modDir
}

// BeginScope declares the module currently under analysis, creating its node
// on first sight.
func (r *Resolver) BeginScope(module, file string) error {
	if _, ok := r.graph[module]; !ok {
		if _, err := r.CreateNode(module); err != nil {
			return err
		}
		if err := r.SetFilepath(module, file); err != nil {
			return err
		}
	}
	r.SetCurrentModule(module, file)
	return nil
}

// SetCurrentModule switches the current module without touching the graph.
func (r *Resolver) SetCurrentModule(module, file string) {
	r.currentModule = module
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	r.inputFile = file
}

func (r *Resolver) CurrentModule() string {
	return r.currentModule
}

func (r *Resolver) CurrentFile() string {
	return r.inputFile
}

// CreateNode adds an import graph node. Nodes are created exactly once.
func (r *Resolver) CreateNode(name string) (ModuleNode, error) {
	if name == "" {
		return ModuleNode{}, errors.Structural("invalid node name", name)
	}
	if _, ok := r.graph[name]; ok {
		return ModuleNode{}, errors.Structural("can't create a node a second time", name)
	}
	r.graph[name] = &moduleNode{imports: make(map[string]struct{})}
	return ModuleNode{Imports: []string{}}, nil
}

// CreateEdge records an import from the current module to dest. dest does
// not have to exist as a node.
func (r *Resolver) CreateEdge(dest string) error {
	if dest == "" {
		return errors.Structural("invalid node name", dest)
	}
	node, ok := r.graph[r.currentModule]
	if !ok {
		return errors.Structural("can't add edge to a non existing node", r.currentModule)
	}
	node.imports[dest] = struct{}{}
	return nil
}

// SetFilepath stores the absolute path of an existing node.
func (r *Resolver) SetFilepath(name, filename string) error {
	if filename == "" {
		return errors.Structural("invalid file name", name)
	}
	node, ok := r.graph[name]
	if !ok {
		return errors.Structural("node does not exist", name)
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "resolve absolute path")
	}
	node.filename = abs
	return nil
}

// Node returns a copy of the named node.
func (r *Resolver) Node(name string) (ModuleNode, bool) {
	node, ok := r.graph[name]
	if !ok {
		return ModuleNode{}, false
	}
	return node.export(), true
}

// Filepath returns the recorded path of name, empty when unknown.
func (r *Resolver) Filepath(name string) string {
	if node, ok := r.graph[name]; ok {
		return node.filename
	}
	return ""
}

// Root returns the directory separating internal from external modules.
func (r *Resolver) Root() string {
	return r.root()
}

// IsInternal reports whether name was located to a source file inside the
// package root.
func (r *Resolver) IsInternal(name string) bool {
	file := r.Filepath(name)
	return file != "" && util.IsWithinDir(file, r.root())
}

// Imports returns the sorted import targets of name.
func (r *Resolver) Imports(name string) []string {
	node, ok := r.graph[name]
	if !ok {
		return nil
	}
	return node.export().Imports
}

// Graph returns a copy of the whole import graph.
func (r *Resolver) Graph() map[string]ModuleNode {
	out := make(map[string]ModuleNode, len(r.graph))
	for name, node := range r.graph {
		out[name] = node.export()
	}
	return out
}

func (n *moduleNode) export() ModuleNode {
	imports := make([]string, 0, len(n.imports))
	for dest := range n.imports {
		imports = append(imports, dest)
	}
	sort.Strings(imports)
	return ModuleNode{Filename: n.filename, Imports: imports}
}

// ResolveImport resolves `import name` (level 0) or a relative import with
// level leading dots, as seen from the current module. It returns the
// canonical dotted name of the target when it is an internal module with a
// source file, or "" when the import is skipped. Skips are never errors;
// only malformed graph mutations are.
func (r *Resolver) ResolveImport(name string, level int) (string, error) {
	if r.currentModule == "" {
		return "", errors.Structural("no module in scope", name)
	}

	// Builtins are frozen leaves.
	if name != "" && IsBuiltinModule(name) {
		return "", r.CreateEdge(rootOf(name))
	}

	base, ok := r.relativeBase(level)
	if !ok {
		r.skip(name, level, "attempted relative import beyond top-level package")
		return "", nil
	}

	// Absolute imports are never tried against the importing module's own
	// package; base is empty for level 0.
	full := joinNS(base, name)
	strategies := []string{
		full,
		parentNS(full),
		joinNS(base, name),
		joinNS(base, parentNS(name)),
	}

	var ph Placeholder
	found := false
	tried := make(map[string]bool, len(strategies))
	for _, candidate := range strategies {
		if candidate == "" || tried[candidate] {
			continue
		}
		tried[candidate] = true

		located, err := r.load(candidate)
		if err != nil {
			if errors.IsCode(err, errors.CodeStructural) {
				return "", err
			}
			continue
		}
		ph = located
		found = true
		break
	}
	if !found {
		r.skip(name, level, "module not found")
		return "", nil
	}

	if ph.Path == "" {
		r.skip(name, level, "module has no source file")
		return "", nil
	}
	root := r.root()
	if r.modDir != "" && !util.IsWithinDir(ph.Path, r.modDir) {
		r.skip(name, level, "module outside package root")
		return "", nil
	}

	fname := ph.Path
	if filepath.Base(fname) == initFile {
		fname = filepath.Dir(fname)
	}
	rel, err := filepath.Rel(root, fname)
	if err != nil {
		r.skip(name, level, err.Error())
		return "", nil
	}
	return util.ToModuleName(rel), nil
}

// load is one resolution strategy: known names only gain an edge, unknown
// ones go through the host.
func (r *Resolver) load(name string) (Placeholder, error) {
	if ph, ok := r.host.Known(name); ok {
		if err := r.CreateEdge(name); err != nil {
			return Placeholder{}, err
		}
		return ph, nil
	}
	return r.host.Load(name)
}

// onModuleLocated is the host callback installed by the interception session.
func (r *Resolver) onModuleLocated(name, path string) {
	if r.currentModule == "" {
		slog.Debug("module located outside of a module scope", "module", name)
		return
	}
	if err := r.CreateEdge(name); err != nil {
		slog.Warn("failed to record import edge", "module", name, "error", err)
		return
	}
	if _, ok := r.graph[name]; ok {
		return
	}
	if _, err := r.CreateNode(name); err != nil {
		slog.Warn("failed to record import node", "module", name, "error", err)
		return
	}
	if path != "" {
		if err := r.SetFilepath(name, path); err != nil {
			slog.Warn("failed to record import path", "module", name, "error", err)
		}
	}
}

// relativeBase strips level trailing components from the current module.
// A package initializer already names its package, so one level less is
// stripped for it.
func (r *Resolver) relativeBase(level int) (string, bool) {
	if level <= 0 {
		return "", true
	}
	parts := strings.Split(r.currentModule, ".")
	strip := level
	if r.isInitFile() {
		strip = level - 1
	}
	if strip >= len(parts) {
		return "", false
	}
	return strings.Join(parts[:len(parts)-strip], "."), true
}

func (r *Resolver) isInitFile() bool {
	return filepath.Base(r.inputFile) == initFile
}

func (r *Resolver) root() string {
	if r.modDir != "" {
		return r.modDir
	}
	return filepath.Dir(r.inputFile)
}

func (r *Resolver) skip(name string, level int, reason string) {
	observability.ImportSkipsTotal.Inc()
	slog.Debug("import skipped",
		"module", r.currentModule,
		"import", fmt.Sprintf("%s%s", strings.Repeat(".", max(level, 0)), name),
		"reason", reason,
	)
}

func joinNS(base, name string) string {
	switch {
	case base == "":
		return name
	case name == "":
		return base
	default:
		return base + "." + name
	}
}

func parentNS(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
