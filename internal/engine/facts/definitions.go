// Package facts holds the mutable fact stores the analysis passes fill in:
// definitions and what they may point to, lexical scopes, class hierarchies,
// module records and key error findings.
package facts

import (
	"sort"
	"strings"

	"reachgraph/internal/core/errors"
)

// Reserved namespace components.
const (
	ReturnName = "<RETURN>"
	LambdaName = "<lambda%d>"
	DictName   = "<dict%d>"
	BuiltinNS  = "<builtin>"
	InitMethod = "__init__"
)

type DefType string

const (
	FunctionDef DefType = "FUNCTIONDEF"
	ClassDef    DefType = "CLASSDEF"
	ModuleDef   DefType = "MODULEDEF"
	NameDef     DefType = "NAMEDEF"
	ExternalDef DefType = "EXTERNALDEF"
	DictDef     DefType = "DICTDEF"
)

// Definition is a named entity of the analysed program. Names is the set of
// namespaces the entity may refer to; Lits the literal values it may hold.
// Function, class, module and external definitions point to themselves.
type Definition struct {
	NS     string
	Type   DefType
	Names  StringSet
	Lits   StringSet
	Params []string
}

// IsCallable reports whether a call through the definition creates an edge.
func (d *Definition) IsCallable() bool {
	return d.Type == FunctionDef || d.Type == ExternalDef
}

type Definitions struct {
	defs map[string]*Definition
}

func NewDefinitions() *Definitions {
	return &Definitions{defs: make(map[string]*Definition)}
}

// Create returns the definition at ns, creating it when missing. A plain name
// definition is promoted when ns is later declared as something concrete.
func (m *Definitions) Create(ns string, typ DefType) (*Definition, error) {
	if ns == "" {
		return nil, errors.Structural("empty definition namespace", ns)
	}
	if def, ok := m.defs[ns]; ok {
		if def.Type == NameDef && typ != NameDef {
			def.Type = typ
			if typ != DictDef {
				def.Names.Add(ns)
			}
		}
		return def, nil
	}

	def := &Definition{NS: ns, Type: typ, Names: NewStringSet(), Lits: NewStringSet()}
	switch typ {
	case FunctionDef, ClassDef, ModuleDef, ExternalDef:
		def.Names.Add(ns)
	}
	m.defs[ns] = def
	return def, nil
}

// CreateFunction declares a function and its return value definition.
func (m *Definitions) CreateFunction(ns string, params []string) (*Definition, error) {
	def, err := m.Create(ns, FunctionDef)
	if err != nil {
		return nil, err
	}
	if _, err := m.Create(ns+"."+ReturnName, NameDef); err != nil {
		return nil, err
	}
	if params != nil {
		def.Params = append([]string(nil), params...)
	}
	return def, nil
}

func (m *Definitions) Get(ns string) (*Definition, bool) {
	def, ok := m.defs[ns]
	return def, ok
}

// Defs returns the live definition table keyed by namespace.
func (m *Definitions) Defs() map[string]*Definition {
	return m.defs
}

func (m *Definitions) Len() int {
	return len(m.defs)
}

// Functions returns every function namespace, sorted.
func (m *Definitions) Functions() []string {
	var out []string
	for ns, def := range m.defs {
		if def.Type == FunctionDef {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out
}

// Complete propagates pointees through name definitions until nothing
// changes: a name pointing at another name also points at everything that
// name points at, literals included.
func (m *Definitions) Complete() {
	keys := make([]string, 0, len(m.defs))
	for ns := range m.defs {
		keys = append(keys, ns)
	}
	sort.Strings(keys)

	for round := 0; round <= len(keys); round++ {
		changed := false
		for _, ns := range keys {
			def := m.defs[ns]
			for _, name := range def.Names.Sorted() {
				if name == ns {
					continue
				}
				target, ok := m.defs[name]
				if !ok || target.Type != NameDef {
					continue
				}
				for item := range target.Names {
					// a name may not point at itself through a cycle
					if item != ns && def.Names.Add(item) {
						changed = true
					}
				}
				if def.Lits.Merge(target.Lits) {
					changed = true
				}
			}
			if def.Type == NameDef {
				def.Names.Remove(ns)
			}
		}
		if !changed {
			return
		}
	}
}

// Targets resolves ns to the concrete definitions it may denote: functions,
// classes, modules, externals and dicts. Names without a definition are
// returned as they are. The result is sorted.
func (m *Definitions) Targets(ns string) []string {
	out := NewStringSet()
	seen := NewStringSet()
	var visit func(string)
	visit = func(name string) {
		if !seen.Add(name) {
			return
		}
		def, ok := m.defs[name]
		if !ok {
			out.Add(name)
			return
		}
		if def.Type != NameDef {
			out.Add(name)
			return
		}
		for _, next := range def.Names.Sorted() {
			visit(next)
		}
	}
	visit(ns)
	return out.Sorted()
}

// Literals returns the literal values ns may hold, following name pointers.
func (m *Definitions) Literals(ns string) []string {
	out := NewStringSet()
	seen := NewStringSet()
	var visit func(string)
	visit = func(name string) {
		if !seen.Add(name) {
			return
		}
		def, ok := m.defs[name]
		if !ok {
			return
		}
		out.Merge(def.Lits)
		if def.Type == NameDef {
			for _, next := range def.Names.Sorted() {
				visit(next)
			}
		}
	}
	visit(ns)
	return out.Sorted()
}

// Parent returns the namespace that declares ns.
func Parent(ns string) string {
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ""
}

// Join appends name to the namespace ns.
func Join(ns, name string) string {
	if ns == "" {
		return name
	}
	if name == "" {
		return ns
	}
	return ns + "." + name
}
