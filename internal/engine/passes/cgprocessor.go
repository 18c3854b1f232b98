package passes

import (
	"log/slog"

	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// CallGraphProcessor turns the converged facts into call graph edges. Every
// call site adds an edge from the innermost enclosing function, or the
// module at top level, to each callable its callee may denote.
type CallGraphProcessor struct {
	base
}

func NewCallGraphProcessor(env *Env, file, module string, analyzed ModuleSet) *CallGraphProcessor {
	return &CallGraphProcessor{base: newBase(env, file, module, analyzed)}
}

func (c *CallGraphProcessor) Analyze() error {
	if !c.begin() {
		return nil
	}
	if !c.env.Modules.IsInternal(c.module) {
		return nil
	}
	if err := c.analyzeImported(CallGraphProcessorFactory(c.env)); err != nil {
		return err
	}

	slog.Debug("building call graph", "module", c.module)
	if err := c.env.CallGraph.AddNode(c.module, c.module); err != nil {
		return err
	}
	c.env.CallGraph.AddEntrypoint(c.module, c.module)

	handlers := c.definitionHandlers()
	handlers["function_definition"] = func(node *sitter.Node) bool {
		return c.visitFunction(node, func(ns string, _ *sitter.Node) { c.addNode(ns) })
	}
	handlers["lambda"] = func(node *sitter.Node) bool {
		return c.visitLambda(node, c.addNode)
	}
	handlers["decorator"] = c.visitDecorator
	handlers["call"] = c.visitCall
	return c.walk(handlers)
}

func (c *CallGraphProcessor) addNode(ns string) {
	if err := c.env.CallGraph.AddNode(ns, c.module); err != nil {
		c.fail(err)
	}
}

// visitDecorator links the decorated scope to a decorator referenced
// without a call; decorator calls are handled as ordinary calls.
func (c *CallGraphProcessor) visitDecorator(node *sitter.Node) bool {
	children := parser.NamedChildren(node)
	if len(children) == 0 {
		return false
	}
	expr := parser.Unwrap(children[0])
	if expr.Kind() == "call" {
		return false
	}
	c.addEdges(c.targets(c.decode(expr)), c.src.Line(node))
	return false
}

func (c *CallGraphProcessor) visitCall(node *sitter.Node) bool {
	callee := c.handleCall(node)
	c.addEdges(c.targets(callee), c.src.Line(node))
	return false
}

func (c *CallGraphProcessor) addEdges(targets []string, line int) {
	if line <= 0 {
		line = callgraph.UnknownLine
	}
	src := c.method()
	for _, target := range targets {
		def, ok := c.env.Defs.Get(target)
		if !ok {
			continue
		}
		switch def.Type {
		case facts.FunctionDef:
			c.addEdge(src, target, line, "")
		case facts.ExternalDef:
			c.addExternalEdge(src, target, line)
		case facts.ClassDef:
			for _, init := range c.initMethods(target) {
				if c.isExternal(init) {
					c.addExternalEdge(src, init, line)
				} else {
					c.addEdge(src, init, line, "")
				}
			}
		}
	}
}

func (c *CallGraphProcessor) addExternalEdge(src, target string, line int) {
	ext := rootOf(target)
	if err := c.env.CallGraph.AddNode(target, ext); err != nil {
		c.fail(err)
		return
	}
	c.addEdge(src, target, line, ext)
}

func (c *CallGraphProcessor) addEdge(src, dst string, line int, ext string) {
	if err := c.env.CallGraph.AddEdge(src, dst, line, c.module, ext); err != nil {
		c.fail(err)
	}
}
