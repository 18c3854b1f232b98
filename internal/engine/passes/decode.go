package passes

import (
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// value is what an expression may evaluate to: definition namespaces and
// literal constants.
type value struct {
	names facts.StringSet
	lits  facts.StringSet
}

func newValue() value {
	return value{names: facts.NewStringSet(), lits: facts.NewStringSet()}
}

func (v value) merge(other value) {
	v.names.Merge(other.names)
	v.lits.Merge(other.lits)
}

func (v value) empty() bool {
	return len(v.names) == 0 && len(v.lits) == 0
}

// targets resolves every name of v to concrete definitions.
func (b *base) targets(v value) []string {
	out := facts.NewStringSet()
	for _, name := range v.names.Sorted() {
		for _, target := range b.env.Defs.Targets(name) {
			out.Add(target)
		}
	}
	return out.Sorted()
}

func (b *base) decode(node *sitter.Node) value {
	v := newValue()
	node = parser.Unwrap(node)
	if node == nil {
		return v
	}

	switch node.Kind() {
	case "identifier":
		name := b.src.Text(node)
		if ns, ok := b.env.Scopes.Lookup(b.ns(), name); ok {
			v.names.Add(ns)
		} else if isBuiltin(name) {
			v.names.Add(b.external(facts.Join(facts.BuiltinNS, name)))
		}

	case "attribute":
		obj := b.decode(node.ChildByFieldName("object"))
		attr := b.src.Text(node.ChildByFieldName("attribute"))
		for _, target := range b.targets(obj) {
			if ns, ok := b.attribute(target, attr); ok {
				v.names.Add(ns)
			}
		}

	case "call":
		v.merge(b.decodeCall(node))

	case "string":
		if s, ok := parser.StringValue(b.src, node); ok {
			v.lits.Add(s)
		}

	case "integer", "float", "true", "false", "none":
		v.lits.Add(b.src.Text(node))

	case "dictionary":
		v.names.Add(b.defineDict(node))

	case "lambda":
		v.names.Add(b.defineLambda(node))

	case "list", "tuple", "set", "expression_list", "pattern_list", "tuple_pattern", "list_pattern":
		for _, child := range parser.NamedChildren(node) {
			v.merge(b.decode(child))
		}

	case "list_splat", "await", "keyword_argument":
		children := parser.NamedChildren(node)
		if len(children) > 0 {
			v.merge(b.decode(children[len(children)-1]))
		}

	case "conditional_expression":
		children := parser.NamedChildren(node)
		if len(children) == 3 {
			v.merge(b.decode(children[0]))
			v.merge(b.decode(children[2]))
		}

	case "boolean_operator":
		v.merge(b.decode(node.ChildByFieldName("left")))
		v.merge(b.decode(node.ChildByFieldName("right")))

	case "subscript":
		obj := b.decode(node.ChildByFieldName("value"))
		key, ok := parser.StringValue(b.src, node.ChildByFieldName("subscript"))
		if !ok {
			break
		}
		for _, target := range b.targets(obj) {
			if def, ok := b.env.Defs.Get(target); ok && def.Type == facts.DictDef {
				entry := facts.Join(target, key)
				if _, ok := b.env.Defs.Get(entry); ok {
					v.names.Add(entry)
				}
			}
		}
	}
	return v
}

// decodeCall returns what a call may evaluate to: the return values of the
// functions called, instances of the classes called, external names as
// they are.
func (b *base) decodeCall(node *sitter.Node) value {
	v := newValue()
	callee := parser.Unwrap(node.ChildByFieldName("function"))
	if callee != nil && callee.Kind() == "identifier" && b.src.Text(callee) == "super" {
		if _, bound := b.env.Scopes.Lookup(b.ns(), "super"); !bound {
			if cls, ok := b.enclosingClass(); ok {
				for _, parent := range b.env.Classes.MRO(cls)[1:] {
					v.names.Add(parent)
				}
				return v
			}
		}
	}

	for _, target := range b.targets(b.decode(callee)) {
		def, ok := b.env.Defs.Get(target)
		if !ok {
			continue
		}
		switch def.Type {
		case facts.FunctionDef:
			v.names.Add(facts.Join(target, facts.ReturnName))
		case facts.ClassDef, facts.ExternalDef:
			v.names.Add(target)
		}
	}
	return v
}

// attribute resolves attr on the concrete definition target. Classes are
// searched along their MRO; attributes of external names are external.
func (b *base) attribute(target, attr string) (string, bool) {
	if _, ok := b.env.Classes.Get(target); ok {
		for _, cls := range b.env.Classes.MRO(target) {
			ns := facts.Join(cls, attr)
			if _, ok := b.env.Defs.Get(ns); ok {
				return ns, true
			}
			if b.isExternal(cls) {
				return b.external(ns), true
			}
		}
		return "", false
	}
	if b.isExternal(target) {
		return b.external(facts.Join(target, attr)), true
	}
	ns := facts.Join(target, attr)
	if _, ok := b.env.Defs.Get(ns); ok {
		return ns, true
	}
	return "", false
}

// defineDict declares the dictionary literal at node. Its string keys are
// its literals; each key's value is the definition <dict>.key.
func (b *base) defineDict(node *sitter.Node) string {
	if ns, ok := b.dicts[node.StartByte()]; ok {
		return ns
	}
	ns := b.env.Scopes.NextDict(b.ns())
	b.dicts[node.StartByte()] = ns

	def, err := b.env.Defs.Create(ns, facts.DictDef)
	if err != nil {
		b.fail(err)
		return ns
	}
	for _, pair := range parser.NamedChildren(node) {
		if pair.Kind() != "pair" {
			continue
		}
		key, ok := parser.StringValue(b.src, pair.ChildByFieldName("key"))
		if !ok {
			continue
		}
		def.Lits.Add(key)
		b.mergeInto(facts.Join(ns, key), b.decode(pair.ChildByFieldName("value")))
	}
	return ns
}

// defineLambda declares the anonymous function at node, numbered within the
// current scope.
func (b *base) defineLambda(node *sitter.Node) string {
	if ns, ok := b.lambdas[node.StartByte()]; ok {
		return ns
	}
	ns := b.env.Scopes.NextLambda(b.ns())
	b.lambdas[node.StartByte()] = ns

	params := b.defineFunctionScope(ns, node.ChildByFieldName("parameters"), "")
	if _, err := b.env.Defs.CreateFunction(ns, params); err != nil {
		b.fail(err)
		return ns
	}
	b.push(ns, functionFrame)
	ret := b.decode(node.ChildByFieldName("body"))
	b.pop()
	b.mergeInto(facts.Join(ns, facts.ReturnName), ret)
	return ns
}
