package passes

import (
	"log/slog"
	"path/filepath"
	"strings"

	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PreProcessor declares the module, everything it defines and everything it
// imports. Internal imports are resolved through the interception session
// and preprocessed recursively before the importing module continues.
type PreProcessor struct {
	base
}

func NewPreProcessor(env *Env, file, module string, analyzed ModuleSet) *PreProcessor {
	return &PreProcessor{base: newBase(env, file, module, analyzed)}
}

func (p *PreProcessor) Analyze() error {
	if !p.begin() {
		return nil
	}
	slog.Debug("preprocessing module", "module", p.module, "path", p.file)

	if err := p.env.Resolver.BeginScope(p.module, p.file); err != nil {
		return err
	}
	abs, err := filepath.Abs(p.file)
	if err != nil {
		abs = p.file
	}
	if _, err := p.env.Defs.Create(p.module, facts.ModuleDef); err != nil {
		return err
	}
	if _, err := p.env.Scopes.Create(p.module, "", false); err != nil {
		return err
	}
	if _, err := p.env.Modules.Create(p.module, abs, false); err != nil {
		return err
	}

	handlers := p.definitionHandlers()
	handlers["import_statement"] = p.visitImport
	handlers["import_from_statement"] = p.visitImportFrom
	return p.walk(handlers)
}

// visitImport handles `import a.b.c` and `import a.b.c as d`. Without an
// alias the root package a is bound.
func (p *PreProcessor) visitImport(node *sitter.Node) bool {
	for _, item := range parser.NamedChildren(node) {
		nameNode, alias := item, ""
		if item.Kind() == "aliased_import" {
			nameNode = item.ChildByFieldName("name")
			alias = p.src.Text(item.ChildByFieldName("alias"))
		}
		if nameNode == nil || nameNode.Kind() != "dotted_name" {
			continue
		}
		name := p.src.Text(nameNode)

		resolved := p.resolve(name, 0)
		if alias != "" {
			p.bind(alias, p.moduleTarget(resolved, name))
			continue
		}

		root := rootOf(name)
		rootResolved := ""
		depth := strings.Count(name, ".")
		if parts := strings.Split(resolved, "."); resolved != "" && len(parts) > depth {
			rootResolved = strings.Join(parts[:len(parts)-depth], ".")
			if rootResolved != resolved {
				p.analyzeSubmodule(rootResolved)
				if _, ok := p.env.Defs.Get(rootResolved); !ok {
					// Namespace package: no source, still a module.
					if _, err := p.env.Defs.Create(rootResolved, facts.ModuleDef); err != nil {
						p.fail(err)
					}
				}
			}
		}
		p.bind(root, p.moduleTarget(rootResolved, root))
	}
	return true
}

// visitImportFrom handles `from m import x as y`, relative forms and `*`.
func (p *PreProcessor) visitImportFrom(node *sitter.Node) bool {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return true
	}
	modName, level := p.importSource(moduleNode)

	for _, item := range parser.NamedChildren(node) {
		if sameNode(item, moduleNode) {
			continue
		}

		if item.Kind() == "wildcard_import" {
			resolved := p.resolve(modName, level)
			if resolved == "" {
				p.externalModule(modName)
				continue
			}
			for _, name := range p.env.Scopes.Names(resolved) {
				p.bind(name, facts.Join(resolved, name))
			}
			continue
		}

		nameNode, alias := item, ""
		if item.Kind() == "aliased_import" {
			nameNode = item.ChildByFieldName("name")
			alias = p.src.Text(item.ChildByFieldName("alias"))
		}
		if nameNode == nil {
			continue
		}
		name := p.src.Text(nameNode)
		if alias == "" {
			alias = name
		}

		resolved := p.resolve(facts.Join(modName, name), level)
		if resolved == "" {
			target := facts.Join(modName, name)
			if modName == "" {
				target = name
			}
			p.externalModule(target)
			p.bind(alias, p.external(target))
			continue
		}
		p.bind(alias, p.importedName(resolved, name))
	}
	return true
}

// importSource returns the dotted module of a from-import and its relative
// level.
func (p *PreProcessor) importSource(node *sitter.Node) (string, int) {
	if node.Kind() != "relative_import" {
		return p.src.Text(node), 0
	}
	name, level := "", 0
	for _, child := range parser.NamedChildren(node) {
		switch child.Kind() {
		case "import_prefix":
			level = strings.Count(p.src.Text(child), ".")
		case "dotted_name":
			name = p.src.Text(child)
		}
	}
	return name, level
}

// importedName decides what `from <resolved> import name` refers to: a
// name bound in the module, the module itself when name was resolved as a
// submodule, or the module's attribute otherwise.
func (p *PreProcessor) importedName(resolved, name string) string {
	switch {
	case p.env.Scopes.Bound(resolved, name):
		return facts.Join(resolved, name)
	case resolved == name || strings.HasSuffix(resolved, "."+name):
		return resolved
	default:
		return facts.Join(resolved, name)
	}
}

// moduleTarget is the definition an import binds: the analysed module when
// resolved, an external definition otherwise.
func (p *PreProcessor) moduleTarget(resolved, name string) string {
	if resolved != "" {
		if _, ok := p.env.Defs.Get(resolved); ok {
			return resolved
		}
	}
	p.externalModule(name)
	return p.external(name)
}

func (p *PreProcessor) externalModule(name string) {
	if name == "" {
		return
	}
	if _, err := p.env.Modules.Create(rootOf(name), "", true); err != nil {
		p.fail(err)
	}
}

// resolve resolves an import and preprocesses the module it names.
func (p *PreProcessor) resolve(name string, level int) string {
	resolved, err := p.env.Resolver.ResolveImport(name, level)
	if err != nil {
		p.fail(err)
		return ""
	}
	if resolved != "" {
		p.analyzeSubmodule(resolved)
	}
	return resolved
}

// analyzeSubmodule preprocesses an internal module not seen yet, then puts
// the current module back in the resolver's scope.
func (p *PreProcessor) analyzeSubmodule(name string) {
	if p.analyzed.Has(name) || !p.env.Resolver.IsInternal(name) {
		return
	}
	file := p.env.Resolver.Filepath(name)
	if err := NewPreProcessor(p.env, file, name, p.analyzed).Analyze(); err != nil {
		p.fail(err)
	}
	if err := p.env.Resolver.BeginScope(p.module, p.file); err != nil {
		p.fail(err)
	}
}
