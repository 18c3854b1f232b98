package facts

import "reachgraph/internal/core/errors"

// Method is a function declared by a module, with its line span.
type Method struct {
	Name  string `json:"name"`
	First int    `json:"first"`
	Last  int    `json:"last"`
}

// Module is a module record. External modules have no filename.
type Module struct {
	Name     string
	Filename string
	External bool
	Methods  map[string]Method
}

type Modules struct {
	internal map[string]*Module
	external map[string]*Module
}

func NewModules() *Modules {
	return &Modules{
		internal: make(map[string]*Module),
		external: make(map[string]*Module),
	}
}

// Create records a module. A module first seen as external becomes internal
// once its source is analysed.
func (m *Modules) Create(name, filename string, external bool) (*Module, error) {
	if name == "" {
		return nil, errors.Structural("empty module name", name)
	}
	if mod, ok := m.internal[name]; ok {
		return mod, nil
	}
	if external {
		if mod, ok := m.external[name]; ok {
			return mod, nil
		}
		mod := &Module{Name: name, External: true, Methods: make(map[string]Method)}
		m.external[name] = mod
		return mod, nil
	}

	mod := &Module{Name: name, Filename: filename, Methods: make(map[string]Method)}
	if prev, ok := m.external[name]; ok {
		for k, v := range prev.Methods {
			mod.Methods[k] = v
		}
		delete(m.external, name)
	}
	m.internal[name] = mod
	return mod, nil
}

func (m *Modules) Get(name string) (*Module, bool) {
	if mod, ok := m.internal[name]; ok {
		return mod, true
	}
	mod, ok := m.external[name]
	return mod, ok
}

// IsInternal reports whether name was analysed from source.
func (m *Modules) IsInternal(name string) bool {
	_, ok := m.internal[name]
	return ok
}

// AddMethod declares fn in module with its line span.
func (m *Modules) AddMethod(module, fn string, first, last int) {
	mod, ok := m.Get(module)
	if !ok {
		return
	}
	mod.Methods[fn] = Method{Name: fn, First: first, Last: last}
}

func (m *Modules) Internal() map[string]*Module {
	return m.internal
}

func (m *Modules) External() map[string]*Module {
	return m.external
}
