package facts

import (
	"reachgraph/internal/core/errors"
)

// Class is a class hierarchy record. MRO starts with the class itself.
type Class struct {
	NS     string
	Module string
	Bases  []string
	MRO    []string
}

type Classes struct {
	classes map[string]*Class
}

func NewClasses() *Classes {
	return &Classes{classes: make(map[string]*Class)}
}

func (c *Classes) Create(ns, module string) (*Class, error) {
	if ns == "" {
		return nil, errors.Structural("empty class namespace", ns)
	}
	if cls, ok := c.classes[ns]; ok {
		return cls, nil
	}
	cls := &Class{NS: ns, Module: module, MRO: []string{ns}}
	c.classes[ns] = cls
	return cls, nil
}

func (c *Classes) Get(ns string) (*Class, bool) {
	cls, ok := c.classes[ns]
	return cls, ok
}

// Classes returns the live class table.
func (c *Classes) Classes() map[string]*Class {
	return c.classes
}

// SetBases replaces the direct bases of ns, dropping duplicates and ns itself.
func (c *Classes) SetBases(ns string, bases []string) {
	cls, ok := c.classes[ns]
	if !ok {
		return
	}
	seen := NewStringSet(ns)
	cls.Bases = cls.Bases[:0]
	for _, base := range bases {
		if seen.Add(base) {
			cls.Bases = append(cls.Bases, base)
		}
	}
}

// MRO returns the method resolution order of ns; unknown names resolve to
// themselves only.
func (c *Classes) MRO(ns string) []string {
	if cls, ok := c.classes[ns]; ok {
		return append([]string(nil), cls.MRO...)
	}
	return []string{ns}
}

// ComputeMRO linearises ns with C3. Hierarchies C3 rejects fall back to a
// left-to-right depth-first order without duplicates.
func (c *Classes) ComputeMRO(ns string) []string {
	cls, ok := c.classes[ns]
	if !ok {
		return []string{ns}
	}
	mro, ok := c.linearize(ns, NewStringSet())
	if !ok {
		mro = c.depthFirst(ns)
	}
	cls.MRO = mro
	return append([]string(nil), mro...)
}

func (c *Classes) linearize(ns string, active StringSet) ([]string, bool) {
	cls, ok := c.classes[ns]
	if !ok {
		return []string{ns}, true
	}
	if !active.Add(ns) {
		return nil, false
	}
	defer active.Remove(ns)

	seqs := make([][]string, 0, len(cls.Bases)+1)
	for _, base := range cls.Bases {
		baseMRO, ok := c.linearize(base, active)
		if !ok {
			return nil, false
		}
		seqs = append(seqs, baseMRO)
	}
	seqs = append(seqs, append([]string(nil), cls.Bases...))

	merged, ok := merge(seqs)
	if !ok {
		return nil, false
	}
	return append([]string{ns}, merged...), true
}

// merge is the C3 merge step.
func merge(seqs [][]string) ([]string, bool) {
	var out []string
	for {
		nonEmpty := seqs[:0]
		for _, seq := range seqs {
			if len(seq) > 0 {
				nonEmpty = append(nonEmpty, seq)
			}
		}
		seqs = nonEmpty
		if len(seqs) == 0 {
			return out, true
		}

		var head string
		found := false
		for _, seq := range seqs {
			candidate := seq[0]
			if !inTail(candidate, seqs) {
				head = candidate
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}

		out = append(out, head)
		for i, seq := range seqs {
			if seq[0] == head {
				seqs[i] = seq[1:]
			}
		}
	}
}

func inTail(name string, seqs [][]string) bool {
	for _, seq := range seqs {
		for _, item := range seq[1:] {
			if item == name {
				return true
			}
		}
	}
	return false
}

func (c *Classes) depthFirst(ns string) []string {
	var out []string
	seen := NewStringSet()
	var visit func(string)
	visit = func(name string) {
		if !seen.Add(name) {
			return
		}
		out = append(out, name)
		if cls, ok := c.classes[name]; ok {
			for _, base := range cls.Bases {
				visit(base)
			}
		}
	}
	visit(ns)
	return out
}
