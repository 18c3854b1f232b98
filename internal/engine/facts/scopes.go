package facts

import (
	"fmt"

	"reachgraph/internal/core/errors"
)

// Scope is the lexical scope of a module, class, function or lambda. Bound
// names map to the definition at Join(NS, name).
type Scope struct {
	NS     string
	Parent string
	Class  bool

	names   StringSet
	lambdas int
	dicts   int
}

type Scopes struct {
	scopes map[string]*Scope
}

func NewScopes() *Scopes {
	return &Scopes{scopes: make(map[string]*Scope)}
}

// Create returns the scope at ns, creating it under parent when missing.
func (s *Scopes) Create(ns, parent string, class bool) (*Scope, error) {
	if ns == "" {
		return nil, errors.Structural("empty scope namespace", ns)
	}
	if scope, ok := s.scopes[ns]; ok {
		return scope, nil
	}
	scope := &Scope{NS: ns, Parent: parent, Class: class, names: NewStringSet()}
	s.scopes[ns] = scope
	return scope, nil
}

func (s *Scopes) Get(ns string) (*Scope, bool) {
	scope, ok := s.scopes[ns]
	return scope, ok
}

// Bind declares name in the scope at ns and returns the definition namespace.
func (s *Scopes) Bind(ns, name string) (string, error) {
	scope, ok := s.scopes[ns]
	if !ok {
		return "", errors.Structural("binding in unknown scope", ns)
	}
	if name == "" {
		return "", errors.Structural("empty binding name", ns)
	}
	scope.names.Add(name)
	return Join(ns, name), nil
}

// Bound reports whether name is declared directly in the scope at ns.
func (s *Scopes) Bound(ns, name string) bool {
	scope, ok := s.scopes[ns]
	return ok && scope.names.Has(name)
}

// Names returns the names declared directly in the scope at ns, sorted.
func (s *Scopes) Names(ns string) []string {
	scope, ok := s.scopes[ns]
	if !ok {
		return nil
	}
	return scope.names.Sorted()
}

// Lookup resolves name from the scope at ns outwards. Enclosing class scopes
// are not visible from the functions nested in them.
func (s *Scopes) Lookup(ns, name string) (string, bool) {
	for current, first := ns, true; current != ""; first = false {
		scope, ok := s.scopes[current]
		if !ok {
			return "", false
		}
		if (first || !scope.Class) && scope.names.Has(name) {
			return Join(scope.NS, name), true
		}
		current = scope.Parent
	}
	return "", false
}

// Bindings returns, per scope, the set of bound definition namespaces.
func (s *Scopes) Bindings() map[string]StringSet {
	out := make(map[string]StringSet, len(s.scopes))
	for ns, scope := range s.scopes {
		set := NewStringSet()
		for name := range scope.names {
			set.Add(Join(ns, name))
		}
		out[ns] = set
	}
	return out
}

// NextLambda returns the namespace of the next anonymous function of ns.
func (s *Scopes) NextLambda(ns string) string {
	scope, ok := s.scopes[ns]
	if !ok {
		return Join(ns, fmt.Sprintf(LambdaName, 0))
	}
	name := fmt.Sprintf(LambdaName, scope.lambdas)
	scope.lambdas++
	return Join(ns, name)
}

// NextDict returns the namespace of the next dictionary literal of ns.
func (s *Scopes) NextDict(ns string) string {
	scope, ok := s.scopes[ns]
	if !ok {
		return Join(ns, fmt.Sprintf(DictName, 0))
	}
	name := fmt.Sprintf(DictName, scope.dicts)
	scope.dicts++
	return Join(ns, name)
}

// ResetCounters restarts anonymous numbering in every scope so repeated
// passes name the same literals identically.
func (s *Scopes) ResetCounters() {
	for _, scope := range s.scopes {
		scope.lambdas = 0
		scope.dicts = 0
	}
}
