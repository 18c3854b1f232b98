package passes

import (
	"sort"
	"strings"

	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// definitionHandlers declare functions, classes and name bindings. Every
// stage installs them so anonymous literals are numbered identically in
// each pass; re-declaring is idempotent.
func (b *base) definitionHandlers() map[string]parser.NodeHandler {
	return map[string]parser.NodeHandler{
		"function_definition":   func(node *sitter.Node) bool { return b.visitFunction(node, nil) },
		"class_definition":      b.visitClass,
		"lambda":                func(node *sitter.Node) bool { return b.visitLambda(node, nil) },
		"dictionary":            b.visitDictionary,
		"assignment":            b.visitAssignment,
		"augmented_assignment":  b.visitAugmentedAssignment,
		"for_statement":         b.visitFor,
		"return_statement":      b.visitReturn,
		"call":                  b.visitCall,
		"import_statement":      skipNode,
		"import_from_statement": skipNode,
	}
}

func skipNode(*sitter.Node) bool {
	return true
}

// visitFunction declares the function at node, then walks its defaults in
// the enclosing scope and its body in its own. declared runs before the body.
func (b *base) visitFunction(node *sitter.Node, declared func(ns string, node *sitter.Node)) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := b.src.Text(nameNode)
	enclosing := b.current()
	ns := facts.Join(enclosing.ns, name)
	if _, err := b.env.Scopes.Bind(enclosing.ns, name); err != nil {
		b.fail(err)
		return true
	}

	selfClass := ""
	if enclosing.kind == classFrame && !b.hasDecorator(node, "staticmethod") {
		selfClass = enclosing.ns
	}
	paramsNode := node.ChildByFieldName("parameters")
	params := b.defineFunctionScope(ns, paramsNode, selfClass)
	if _, err := b.env.Defs.CreateFunction(ns, params); err != nil {
		b.fail(err)
		return true
	}
	b.env.Modules.AddMethod(b.module, ns, b.src.Line(node), b.src.EndLine(node))

	if declared != nil {
		declared(ns, node)
	}
	b.walker.Walk(paramsNode)
	b.walkBody(ns, functionFrame, node.ChildByFieldName("body"))
	return true
}

// defineFunctionScope creates the scope of the function ns and its parameter
// definitions, returning the names that can be bound positionally or by
// keyword. Defaults are decoded in the enclosing scope. When selfClass is
// set the first parameter denotes an instance of it.
func (b *base) defineFunctionScope(ns string, paramsNode *sitter.Node, selfClass string) []string {
	if _, err := b.env.Scopes.Create(ns, b.ns(), false); err != nil {
		b.fail(err)
		return nil
	}

	params := []string{}
	first := true
	for _, param := range parser.NamedChildren(paramsNode) {
		name, deflt, splat := b.parameter(param)
		if name == "" {
			continue
		}
		pns, err := b.env.Scopes.Bind(ns, name)
		if err != nil {
			b.fail(err)
			continue
		}
		def, err := b.env.Defs.Create(pns, facts.NameDef)
		if err != nil {
			b.fail(err)
			continue
		}
		if deflt != nil {
			v := b.decode(deflt)
			def.Names.Merge(v.names)
			def.Lits.Merge(v.lits)
		}
		if first && selfClass != "" && !splat {
			def.Names.Add(selfClass)
		}
		first = false
		if !splat {
			params = append(params, name)
		}
	}
	return params
}

// parameter returns the name of a parameter node, its default value and
// whether it collects extra arguments.
func (b *base) parameter(node *sitter.Node) (string, *sitter.Node, bool) {
	switch node.Kind() {
	case "identifier":
		return b.src.Text(node), nil, false
	case "default_parameter", "typed_default_parameter":
		return b.src.Text(node.ChildByFieldName("name")), node.ChildByFieldName("value"), false
	case "typed_parameter":
		children := parser.NamedChildren(node)
		if len(children) == 0 {
			return "", nil, false
		}
		name, _, splat := b.parameter(children[0])
		return name, nil, splat
	case "list_splat_pattern", "dictionary_splat_pattern":
		children := parser.NamedChildren(node)
		if len(children) == 0 {
			return "", nil, true
		}
		return b.src.Text(children[0]), nil, true
	}
	return "", nil, false
}

func (b *base) hasDecorator(node *sitter.Node, name string) bool {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return false
	}
	for _, child := range parser.NamedChildren(parent) {
		if child.Kind() != "decorator" {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(b.src.Text(child)), "@"))
		if text == name {
			return true
		}
	}
	return false
}

func (b *base) visitClass(node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := b.src.Text(nameNode)
	enclosing := b.ns()
	ns := facts.Join(enclosing, name)

	if _, err := b.env.Scopes.Bind(enclosing, name); err != nil {
		b.fail(err)
		return true
	}
	if _, err := b.env.Defs.Create(ns, facts.ClassDef); err != nil {
		b.fail(err)
		return true
	}
	if _, err := b.env.Scopes.Create(ns, enclosing, true); err != nil {
		b.fail(err)
		return true
	}
	if _, err := b.env.Classes.Create(ns, b.module); err != nil {
		b.fail(err)
		return true
	}

	var bases []string
	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		for _, arg := range parser.NamedChildren(superclasses) {
			if arg.Kind() == "keyword_argument" || arg.Kind() == "dictionary_splat" {
				continue
			}
			for _, target := range b.targets(b.decode(arg)) {
				if def, ok := b.env.Defs.Get(target); ok && (def.Type == facts.ClassDef || def.Type == facts.ExternalDef) {
					bases = append(bases, target)
				}
			}
		}
		b.walker.Walk(superclasses)
	}
	b.env.Classes.SetBases(ns, bases)
	b.env.Classes.ComputeMRO(ns)

	b.walkBody(ns, classFrame, node.ChildByFieldName("body"))
	return true
}

func (b *base) visitLambda(node *sitter.Node, declared func(ns string)) bool {
	ns := b.defineLambda(node)
	if declared != nil {
		declared(ns)
	}
	b.walker.Walk(node.ChildByFieldName("parameters"))
	b.walkBody(ns, functionFrame, node.ChildByFieldName("body"))
	return true
}

func (b *base) visitDictionary(node *sitter.Node) bool {
	b.defineDict(node)
	return false
}

// visitAssignment binds every target of a possibly chained assignment.
func (b *base) visitAssignment(node *sitter.Node) bool {
	targets := []*sitter.Node{node.ChildByFieldName("left")}
	right := node.ChildByFieldName("right")
	for right != nil && right.Kind() == "assignment" {
		targets = append(targets, right.ChildByFieldName("left"))
		right = right.ChildByFieldName("right")
	}
	if right == nil {
		return false
	}

	v := b.decode(right)
	for _, target := range targets {
		b.assign(target, right, v)
	}
	return false
}

func (b *base) visitAugmentedAssignment(node *sitter.Node) bool {
	left := parser.Unwrap(node.ChildByFieldName("left"))
	if left == nil || left.Kind() != "identifier" {
		return false
	}
	v := b.decode(node.ChildByFieldName("right"))
	name := b.src.Text(left)
	ns, ok := b.env.Scopes.Lookup(b.ns(), name)
	if !ok {
		var err error
		if ns, err = b.env.Scopes.Bind(b.ns(), name); err != nil {
			b.fail(err)
			return false
		}
	}
	b.mergeInto(ns, v)
	return false
}

func (b *base) visitFor(node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	if left == nil {
		return false
	}
	b.assign(left, nil, b.decode(node.ChildByFieldName("right")))
	return false
}

// assign binds target to v. Tuple targets are matched element-wise against
// a literal sequence of the same length and receive all of v otherwise.
func (b *base) assign(target, valueNode *sitter.Node, v value) {
	target = parser.Unwrap(target)
	if target == nil {
		return
	}

	switch target.Kind() {
	case "identifier":
		ns, err := b.env.Scopes.Bind(b.ns(), b.src.Text(target))
		if err != nil {
			b.fail(err)
			return
		}
		b.mergeInto(ns, v)

	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list":
		elems := parser.NamedChildren(target)
		values := parser.NamedChildren(parser.Unwrap(valueNode))
		sequence := valueNode != nil && isSequence(parser.Unwrap(valueNode)) && len(values) == len(elems)
		for i, elem := range elems {
			if sequence {
				b.assign(elem, values[i], b.decode(values[i]))
			} else {
				b.assign(elem, nil, v)
			}
		}

	case "list_splat_pattern":
		if children := parser.NamedChildren(target); len(children) > 0 {
			b.assign(children[0], nil, v)
		}

	case "attribute":
		attr := b.src.Text(target.ChildByFieldName("attribute"))
		for _, owner := range b.targets(b.decode(target.ChildByFieldName("object"))) {
			def, ok := b.env.Defs.Get(owner)
			if !ok || (def.Type != facts.ClassDef && def.Type != facts.ModuleDef) {
				continue
			}
			if _, ok := b.env.Scopes.Get(owner); ok {
				if _, err := b.env.Scopes.Bind(owner, attr); err != nil {
					b.fail(err)
					continue
				}
			}
			b.mergeInto(facts.Join(owner, attr), v)
		}

	case "subscript":
		key, ok := parser.StringValue(b.src, target.ChildByFieldName("subscript"))
		if !ok {
			return
		}
		for _, owner := range b.targets(b.decode(target.ChildByFieldName("value"))) {
			def, ok := b.env.Defs.Get(owner)
			if !ok || def.Type != facts.DictDef {
				continue
			}
			def.Lits.Add(key)
			b.mergeInto(facts.Join(owner, key), v)
		}
	}
}

func isSequence(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "tuple", "list", "expression_list", "pattern_list":
		return true
	}
	return false
}

func (b *base) visitReturn(node *sitter.Node) bool {
	if b.current().kind != functionFrame {
		return false
	}
	children := parser.NamedChildren(node)
	if len(children) == 0 {
		return false
	}
	b.mergeInto(facts.Join(b.ns(), facts.ReturnName), b.decode(children[0]))
	return false
}

func (b *base) visitCall(node *sitter.Node) bool {
	b.handleCall(node)
	return false
}

// handleCall decodes the callee and binds the call's arguments to the
// parameters of every function it may reach. It returns the decoded callee.
func (b *base) handleCall(node *sitter.Node) value {
	calleeNode := parser.Unwrap(node.ChildByFieldName("function"))
	callee := b.decode(calleeNode)

	var positional []value
	keywords := map[string]value{}
	if args := node.ChildByFieldName("arguments"); args != nil && args.Kind() == "argument_list" {
		for _, arg := range parser.NamedChildren(args) {
			switch arg.Kind() {
			case "keyword_argument":
				keywords[b.src.Text(arg.ChildByFieldName("name"))] = b.decode(arg.ChildByFieldName("value"))
			case "list_splat", "dictionary_splat":
				b.decode(arg)
				positional = nil
			default:
				positional = append(positional, b.decode(arg))
			}
		}
	}

	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	sort.Strings(names)

	viaAttribute := calleeNode != nil && calleeNode.Kind() == "attribute"
	for _, target := range b.targets(callee) {
		fn, offset := b.callable(target, viaAttribute)
		def, ok := b.env.Defs.Get(fn)
		if fn == "" || !ok {
			continue
		}
		for i, arg := range positional {
			if idx := i + offset; idx < len(def.Params) {
				b.mergeInto(facts.Join(fn, def.Params[idx]), arg)
			}
		}
		for _, name := range names {
			if contains(def.Params, name) {
				b.mergeInto(facts.Join(fn, name), keywords[name])
			}
		}
	}
	return callee
}

// callable maps a call target to the function receiving its arguments and
// the number of leading parameters filled implicitly.
func (b *base) callable(target string, viaAttribute bool) (string, int) {
	def, ok := b.env.Defs.Get(target)
	if !ok {
		return "", 0
	}
	switch def.Type {
	case facts.FunctionDef:
		if viaAttribute && b.isMethod(target) {
			return target, 1
		}
		return target, 0
	case facts.ClassDef:
		for _, init := range b.initMethods(target) {
			if d, ok := b.env.Defs.Get(init); ok && d.Type == facts.FunctionDef {
				return init, 1
			}
		}
	}
	return "", 0
}

// isMethod reports whether fn is an instance method: declared in a class
// with a first parameter denoting that class.
func (b *base) isMethod(fn string) bool {
	cls := facts.Parent(fn)
	if _, ok := b.env.Classes.Get(cls); !ok {
		return false
	}
	def, ok := b.env.Defs.Get(fn)
	if !ok || len(def.Params) == 0 {
		return false
	}
	first, ok := b.env.Defs.Get(facts.Join(fn, def.Params[0]))
	return ok && first.Names.Has(cls)
}

// initMethods returns the constructor run when cls is called: the first
// __init__ along the MRO, external when an external base comes first.
func (b *base) initMethods(cls string) []string {
	for _, c := range b.env.Classes.MRO(cls) {
		init := facts.Join(c, facts.InitMethod)
		if def, ok := b.env.Defs.Get(init); ok && def.Type == facts.FunctionDef {
			return []string{init}
		}
		if b.isExternal(c) {
			return []string{b.external(init)}
		}
	}
	return nil
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
