package passes

import (
	"strings"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type frameKind int

const (
	moduleFrame frameKind = iota
	classFrame
	functionFrame
)

type frame struct {
	ns   string
	kind frameKind
}

// base carries the walking state every pass shares: the namespace stack,
// the per-pass cache of anonymous literal names and the first fact store
// error, which aborts the pass once the walk returns.
type base struct {
	env      *Env
	file     string
	module   string
	analyzed ModuleSet

	src     *parser.Source
	walker  *parser.Walker
	stack   []frame
	lambdas map[uint]string
	dicts   map[uint]string
	err     error
}

func newBase(env *Env, file, module string, analyzed ModuleSet) base {
	if analyzed == nil {
		analyzed = NewModuleSet()
	}
	return base{
		env:      env,
		file:     file,
		module:   module,
		analyzed: analyzed,
		lambdas:  make(map[uint]string),
		dicts:    make(map[uint]string),
	}
}

func (b *base) ModulesAnalyzed() ModuleSet {
	return b.analyzed
}

// begin claims the module for this stage; false when it was analysed already.
func (b *base) begin() bool {
	if b.analyzed.Has(b.module) {
		return false
	}
	b.analyzed.Add(b.module)
	return true
}

func (b *base) fail(err error) {
	if err != nil && b.err == nil {
		b.err = errors.AddContext(err, errors.CtxModule, b.module)
	}
}

// walk parses the module and walks it inside the module frame.
func (b *base) walk(handlers map[string]parser.NodeHandler) error {
	src, err := b.env.Sources.Acquire(b.file)
	if err != nil {
		return errors.AddContext(err, errors.CtxModule, b.module)
	}
	defer src.Release()

	b.src = src
	b.walker = parser.NewWalker(handlers)
	b.push(b.module, moduleFrame)
	b.walker.Walk(src.Root())
	b.pop()
	return b.err
}

// analyzeImported runs a pass of the same stage over every internal module
// the current module imports and no pass has seen yet.
func (b *base) analyzeImported(next Factory) error {
	for _, name := range b.env.Resolver.Imports(b.module) {
		if b.analyzed.Has(name) {
			continue
		}
		mod, ok := b.env.Modules.Get(name)
		if !ok || mod.External || mod.Filename == "" {
			continue
		}
		if err := next(mod.Filename, name, b.analyzed).Analyze(); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) push(ns string, kind frameKind) {
	b.stack = append(b.stack, frame{ns: ns, kind: kind})
}

func (b *base) pop() {
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *base) current() frame {
	return b.stack[len(b.stack)-1]
}

// ns is the namespace of the innermost scope.
func (b *base) ns() string {
	return b.current().ns
}

// method is the innermost function namespace, or the module outside of any.
func (b *base) method() string {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].kind == functionFrame {
			return b.stack[i].ns
		}
	}
	return b.module
}

// enclosingClass is the innermost class around the current position.
func (b *base) enclosingClass() (string, bool) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].kind == classFrame {
			return b.stack[i].ns, true
		}
	}
	return "", false
}

func (b *base) walkBody(ns string, kind frameKind, body *sitter.Node) {
	if body == nil {
		return
	}
	b.push(ns, kind)
	b.walker.Walk(body)
	b.pop()
}

// mergeInto adds v to the definition at ns, creating a name definition when
// needed.
func (b *base) mergeInto(ns string, v value) {
	def, ok := b.env.Defs.Get(ns)
	if !ok {
		var err error
		if def, err = b.env.Defs.Create(ns, facts.NameDef); err != nil {
			b.fail(err)
			return
		}
	}
	def.Names.Merge(v.names)
	def.Lits.Merge(v.lits)
}

// bind declares name in the current scope pointing at target.
func (b *base) bind(name, target string) {
	ns, err := b.env.Scopes.Bind(b.ns(), name)
	if err != nil {
		b.fail(err)
		return
	}
	def, err := b.env.Defs.Create(ns, facts.NameDef)
	if err != nil {
		b.fail(err)
		return
	}
	if target != ns {
		def.Names.Add(target)
	}
}

// external declares ns and its parents as external definitions.
func (b *base) external(ns string) string {
	parts := strings.Split(ns, ".")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], ".")
		if def, ok := b.env.Defs.Get(prefix); ok && def.Type != facts.NameDef {
			continue
		}
		if _, err := b.env.Defs.Create(prefix, facts.ExternalDef); err != nil {
			b.fail(err)
		}
	}
	return ns
}

func (b *base) isExternal(ns string) bool {
	def, ok := b.env.Defs.Get(ns)
	return ok && def.Type == facts.ExternalDef
}

func rootOf(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}
