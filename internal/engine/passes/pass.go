// Package passes implements the analysis passes run by the orchestrator.
// Every pass walks the syntax tree of one module, recursing into the
// internal modules it imports, and records facts into a shared Env.
package passes

import (
	"sort"

	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/imports"
	"reachgraph/internal/engine/parser"
)

// Pass analyses one entry module and the modules reachable from it.
type Pass interface {
	Analyze() error
	ModulesAnalyzed() ModuleSet
}

// Factory builds a pass for one entry file. analyzed is shared by every
// pass of the same stage so no module is analysed twice.
type Factory func(file, module string, analyzed ModuleSet) Pass

// ModuleSet is a set of canonical module names.
type ModuleSet map[string]struct{}

func NewModuleSet(names ...string) ModuleSet {
	s := make(ModuleSet, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}
	return s
}

func (s ModuleSet) Add(name string) {
	s[name] = struct{}{}
}

func (s ModuleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s ModuleSet) Merge(other ModuleSet) {
	for name := range other {
		s[name] = struct{}{}
	}
}

func (s ModuleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Env is the state shared by every pass of a run.
type Env struct {
	Resolver  *imports.Resolver
	Defs      *facts.Definitions
	Scopes    *facts.Scopes
	Classes   *facts.Classes
	Modules   *facts.Modules
	CallGraph *callgraph.Graph
	KeyErrors *facts.KeyErrors
	Sources   *parser.Cache
}

// NewEnv creates empty fact stores around resolver. A nil cache gets a
// private one.
func NewEnv(resolver *imports.Resolver, sources *parser.Cache) *Env {
	if sources == nil {
		sources = parser.NewCache(0)
	}
	return &Env{
		Resolver:  resolver,
		Defs:      facts.NewDefinitions(),
		Scopes:    facts.NewScopes(),
		Classes:   facts.NewClasses(),
		Modules:   facts.NewModules(),
		CallGraph: callgraph.New(),
		KeyErrors: facts.NewKeyErrors(),
		Sources:   sources,
	}
}

func PreProcessorFactory(env *Env) Factory {
	return func(file, module string, analyzed ModuleSet) Pass {
		return NewPreProcessor(env, file, module, analyzed)
	}
}

func PostProcessorFactory(env *Env) Factory {
	return func(file, module string, analyzed ModuleSet) Pass {
		return NewPostProcessor(env, file, module, analyzed)
	}
}

func CallGraphProcessorFactory(env *Env) Factory {
	return func(file, module string, analyzed ModuleSet) Pass {
		return NewCallGraphProcessor(env, file, module, analyzed)
	}
}

func KeyErrProcessorFactory(env *Env) Factory {
	return func(file, module string, analyzed ModuleSet) Pass {
		return NewKeyErrProcessor(env, file, module, analyzed)
	}
}
