// Package parser loads Python source files into tree-sitter syntax trees and
// provides the tree walking helpers shared by the analysis passes.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	pythonOnce sync.Once
	pythonLang *sitter.Language
)

// Python returns the Python grammar.
func Python() *sitter.Language {
	pythonOnce.Do(func() {
		pythonLang = sitter.NewLanguage(tree_sitter_python.Language())
	})
	return pythonLang
}

// Source is a parsed Python file. Sources handed out by a Cache are
// reference counted; call Release when done with the tree.
type Source struct {
	Path    string
	Content []byte
	Tree    *sitter.Tree
	ModTime time.Time
	Size    int64

	mu      sync.Mutex
	refs    int
	retired bool
}

// ParseFile reads and parses path with a parser leased from pool.
func ParseFile(pool *ParserPool, path string) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "resolve source path")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat source file"), errors.CtxPath, abs)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read source file"), errors.CtxPath, abs)
	}
	src, err := ParseBytes(pool, abs, content)
	if err != nil {
		return nil, err
	}
	src.ModTime = info.ModTime()
	src.Size = info.Size()
	return src, nil
}

// ParseBytes parses content as the file at path.
func ParseBytes(pool *ParserPool, path string, content []byte) (*Source, error) {
	start := time.Now()
	tree := pool.Parse(content)
	observability.ParsingDuration.Observe(time.Since(start).Seconds())
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parser returned no tree"), errors.CtxPath, path)
	}
	if tree.RootNode().HasError() {
		slog.Warn("syntax errors in source, analysing recoverable parts", "path", path)
	}
	return &Source{Path: path, Content: content, Tree: tree, Size: int64(len(content))}, nil
}

func (s *Source) Root() *sitter.Node {
	return s.Tree.RootNode()
}

func (s *Source) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(s.Content[node.StartByte():node.EndByte()])
}

// Line returns the 1-based line node starts on.
func (s *Source) Line(node *sitter.Node) int {
	if node == nil {
		return -1
	}
	return int(node.StartPosition().Row) + 1
}

// EndLine returns the 1-based line node ends on.
func (s *Source) EndLine(node *sitter.Node) int {
	if node == nil {
		return -1
	}
	return int(node.EndPosition().Row) + 1
}

func (s *Source) String() string {
	return fmt.Sprintf("source(%s)", s.Path)
}

func (s *Source) acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release drops one reference. The tree is closed once the source has been
// evicted from its cache and no reference remains.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	s.closeLocked()
}

func (s *Source) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
	s.closeLocked()
}

func (s *Source) closeLocked() {
	if s.retired && s.refs == 0 && s.Tree != nil {
		s.Tree.Close()
		s.Tree = nil
	}
}
