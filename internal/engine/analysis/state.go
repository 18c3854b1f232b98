package analysis

import (
	"slices"

	"reachgraph/internal/engine/facts"
)

// DefState is the snapshot of one definition's pointees.
type DefState struct {
	Names facts.StringSet
	Lits  facts.StringSet
}

// State is a point-in-time copy of every fact the fixed-point loop watches.
type State struct {
	Defs    map[string]DefState
	Scopes  map[string]facts.StringSet
	Classes map[string][]string
}

// extractState copies the current facts of the stores.
func extractState(defs *facts.Definitions, scopes *facts.Scopes, classes *facts.Classes) *State {
	s := &State{
		Defs:    make(map[string]DefState, defs.Len()),
		Scopes:  scopes.Bindings(),
		Classes: make(map[string][]string),
	}
	for ns, def := range defs.Defs() {
		s.Defs[ns] = DefState{Names: def.Names.Clone(), Lits: def.Lits.Clone()}
	}
	for ns, cls := range classes.Classes() {
		s.Classes[ns] = slices.Clone(cls.MRO)
	}
	return s
}

// Equal reports whether two snapshots hold the same facts. A key present in
// only one of them is a difference.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return false
	}
	if len(s.Defs) != len(other.Defs) || len(s.Scopes) != len(other.Scopes) || len(s.Classes) != len(other.Classes) {
		return false
	}
	for ns, def := range s.Defs {
		o, ok := other.Defs[ns]
		if !ok || !def.Names.Equal(o.Names) || !def.Lits.Equal(o.Lits) {
			return false
		}
	}
	for ns, bound := range s.Scopes {
		o, ok := other.Scopes[ns]
		if !ok || !bound.Equal(o) {
			return false
		}
	}
	for ns, mro := range s.Classes {
		o, ok := other.Classes[ns]
		if !ok || !slices.Equal(mro, o) {
			return false
		}
	}
	return true
}
