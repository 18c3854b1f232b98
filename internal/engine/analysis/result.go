package analysis

import (
	"path/filepath"
	"sort"

	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/imports"
)

type ModuleInfo struct {
	Filename string                  `json:"filename"`
	Methods  map[string]facts.Method `json:"methods"`
}

type Modules struct {
	Internal map[string]ModuleInfo `json:"internal"`
	External map[string]ModuleInfo `json:"external"`
}

type ClassInfo struct {
	MRO    []string `json:"mro"`
	Module string   `json:"module"`
}

// DefinitionInfo is the exported row of the raw definition table.
type DefinitionInfo struct {
	Type  string   `json:"type"`
	Names []string `json:"names"`
	Lits  []string `json:"lits"`
}

// Result is everything a run produces.
type Result struct {
	Operation    Operation                         `json:"operation"`
	Graph        map[string][]string               `json:"graph"`
	Extended     map[string]callgraph.ExtendedNode `json:"extended"`
	Edges        [][2]string                       `json:"edges"`
	Modules      Modules                           `json:"modules"`
	Functions    []string                          `json:"functions"`
	Classes      map[string]ClassInfo              `json:"classes"`
	Definitions  map[string]DefinitionInfo         `json:"definitions"`
	KeyErrors    []facts.KeyError                  `json:"key_errors"`
	ImportGraph  map[string]imports.ModuleNode     `json:"import_graph"`
	ImportCycles [][]string                        `json:"import_cycles"`
	Entrypoints  []callgraph.EntryPoint            `json:"entrypoints"`
	Latest       *callgraph.EntryPoint             `json:"latest_entrypoint,omitempty"`
	Reachable    []string                          `json:"reachable,omitempty"`
	Iterations   int                               `json:"iterations"`
	Converged    bool                              `json:"converged"`
}

// Result collects the outputs of the last Analyze call.
func (o *Orchestrator) Result() *Result {
	env := o.env
	res := &Result{
		Operation:    o.Operation,
		Graph:        env.CallGraph.Get(),
		Extended:     env.CallGraph.Extended(),
		Edges:        env.CallGraph.Edges(),
		Modules:      o.OutputModules(),
		Functions:    o.OutputFunctions(),
		Classes:      o.OutputClasses(),
		Definitions:  o.OutputDefinitions(),
		KeyErrors:    env.KeyErrors.All(),
		ImportGraph:  env.Resolver.Graph(),
		ImportCycles: env.Resolver.Cycles(),
		Entrypoints:  env.CallGraph.Entrypoints(),
		Iterations:   o.iterations,
		Converged:    o.converged,
	}
	if latest, ok := env.CallGraph.LatestEntrypoint(); ok {
		res.Latest = &latest
	}
	if o.Operation == OpCallGraph {
		roots := make([]string, 0, len(res.Entrypoints))
		for _, ep := range res.Entrypoints {
			roots = append(roots, ep.Name)
		}
		res.Reachable = env.CallGraph.Reachable(roots...)
	}
	if res.KeyErrors == nil {
		res.KeyErrors = []facts.KeyError{}
	}
	return res
}

// OutputModules splits the module registry. Internal filenames are relative
// to the package root when one is configured.
func (o *Orchestrator) OutputModules() Modules {
	out := Modules{
		Internal: make(map[string]ModuleInfo),
		External: make(map[string]ModuleInfo),
	}
	for name, mod := range o.env.Modules.Internal() {
		out.Internal[name] = ModuleInfo{Filename: o.relative(mod.Filename), Methods: copyMethods(mod.Methods)}
	}
	for name, mod := range o.env.Modules.External() {
		out.External[name] = ModuleInfo{Filename: mod.Filename, Methods: copyMethods(mod.Methods)}
	}
	return out
}

func (o *Orchestrator) relative(filename string) string {
	if o.Package == "" || filename == "" {
		return filename
	}
	root, err := filepath.Abs(o.Package)
	if err != nil {
		return filename
	}
	rel, err := filepath.Rel(root, filename)
	if err != nil {
		return filename
	}
	return filepath.ToSlash(rel)
}

func copyMethods(in map[string]facts.Method) map[string]facts.Method {
	out := make(map[string]facts.Method, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// OutputFunctions lists every function definition, sorted.
func (o *Orchestrator) OutputFunctions() []string {
	return o.env.Defs.Functions()
}

func (o *Orchestrator) OutputClasses() map[string]ClassInfo {
	out := make(map[string]ClassInfo)
	for ns, cls := range o.env.Classes.Classes() {
		mro := make([]string, len(cls.MRO))
		copy(mro, cls.MRO)
		out[ns] = ClassInfo{MRO: mro, Module: cls.Module}
	}
	return out
}

func (o *Orchestrator) OutputDefinitions() map[string]DefinitionInfo {
	out := make(map[string]DefinitionInfo)
	for ns, def := range o.env.Defs.Defs() {
		out[ns] = DefinitionInfo{
			Type:  string(def.Type),
			Names: def.Names.Sorted(),
			Lits:  def.Lits.Sorted(),
		}
	}
	return out
}

// SortedModules returns the internal module names of res, sorted.
func (r *Result) SortedModules() []string {
	names := make([]string, 0, len(r.Modules.Internal))
	for name := range r.Modules.Internal {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
