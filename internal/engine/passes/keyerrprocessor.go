package passes

import (
	"log/slog"

	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// KeyErrProcessor reports dictionary reads with a constant key that no
// dictionary the receiver may denote contains.
type KeyErrProcessor struct {
	base
}

func NewKeyErrProcessor(env *Env, file, module string, analyzed ModuleSet) *KeyErrProcessor {
	return &KeyErrProcessor{base: newBase(env, file, module, analyzed)}
}

func (k *KeyErrProcessor) Analyze() error {
	if !k.begin() {
		return nil
	}
	if !k.env.Modules.IsInternal(k.module) {
		return nil
	}
	if err := k.analyzeImported(KeyErrProcessorFactory(k.env)); err != nil {
		return err
	}

	slog.Debug("checking dictionary lookups", "module", k.module)
	handlers := k.definitionHandlers()
	handlers["subscript"] = k.visitSubscript
	return k.walk(handlers)
}

func (k *KeyErrProcessor) visitSubscript(node *sitter.Node) bool {
	if isStore(node) {
		return false
	}
	key, ok := parser.StringValue(k.src, node.ChildByFieldName("subscript"))
	if !ok {
		return false
	}

	targets := k.targets(k.decode(node.ChildByFieldName("value")))
	if len(targets) == 0 {
		return false
	}
	for _, target := range targets {
		def, ok := k.env.Defs.Get(target)
		if !ok || def.Type != facts.DictDef {
			return false
		}
		if def.Lits.Has(key) {
			return false
		}
	}
	k.env.KeyErrors.Add(k.file, k.src.Line(node), k.ns(), key)
	return false
}

// isStore reports whether node is an assignment target, directly or inside
// a destructuring pattern. Augmented assignments and del read the key.
func isStore(node *sitter.Node) bool {
	child := node
	for parent := node.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		switch parent.Kind() {
		case "pattern_list", "tuple_pattern", "list_pattern", "parenthesized_expression":
			continue
		case "assignment", "for_statement":
			return sameNode(parent.ChildByFieldName("left"), child)
		}
		return false
	}
	return false
}
