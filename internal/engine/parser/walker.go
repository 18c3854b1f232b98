package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes one node. Returning true tells the walker the
// handler took care of the children itself.
type NodeHandler func(node *sitter.Node) bool

// Walker walks a syntax tree depth first and dispatches handlers by node kind.
type Walker struct {
	handlers map[string]NodeHandler
}

func NewWalker(handlers map[string]NodeHandler) *Walker {
	return &Walker{handlers: handlers}
}

func (w *Walker) Walk(node *sitter.Node) {
	if node == nil {
		return
	}
	if handler, ok := w.handlers[node.Kind()]; ok && handler(node) {
		return
	}
	w.WalkChildren(node)
}

// WalkChildren walks every child of node without dispatching node itself.
func (w *Walker) WalkChildren(node *sitter.Node) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.Walk(node.Child(i))
	}
}

// NamedChildren returns the named children of node, comments excluded.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// Unwrap strips parentheses and expression wrappers around node.
func Unwrap(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Kind() {
		case "parenthesized_expression", "expression_statement":
			children := NamedChildren(node)
			if len(children) != 1 {
				return node
			}
			node = children[0]
		default:
			return node
		}
	}
	return node
}

// StringValue returns the content of a plain string literal. Interpolated
// and byte strings are not constant keys and report false.
func StringValue(src *Source, node *sitter.Node) (string, bool) {
	if node == nil || node.Kind() != "string" {
		return "", false
	}
	var b strings.Builder
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "string_start":
			prefix := strings.ToLower(strings.TrimRight(src.Text(child), `"'`))
			if strings.ContainsAny(prefix, "fb") {
				return "", false
			}
		case "string_content":
			b.WriteString(src.Text(child))
		case "interpolation":
			return "", false
		}
	}
	return b.String(), true
}
