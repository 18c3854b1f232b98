// Package callgraph accumulates the call graph produced by the resolution
// stage: a deduplicated adjacency between fully qualified names, an
// append-only provenance log of every edge insertion, and the declaring
// module of each node.
//
// A Graph is not safe for concurrent mutation.
package callgraph

import (
	"sort"

	"reachgraph/internal/core/errors"
)

// UnknownLine marks an edge whose source line could not be determined.
const UnknownLine = -1

// EdgeRecord is one provenance entry of the extended edge log.
type EdgeRecord struct {
	Dst       string `json:"dst"`
	Line      int    `json:"lineno"`
	Module    string `json:"mod"`
	ExtModule string `json:"ext_mod"`
}

// NodeMeta carries per-node bookkeeping of the extended view.
type NodeMeta struct {
	Module string `json:"modname"`
}

// ExtendedNode is the extended view of a source node: every edge ever added
// from it, in insertion order, plus its metadata.
type ExtendedNode struct {
	Dsts []EdgeRecord `json:"dsts"`
	Meta NodeMeta     `json:"meta"`
}

// EntryPoint is a registered analysis root.
type EntryPoint struct {
	Name   string `json:"name"`
	Module string `json:"module"`
}

type Graph struct {
	adjacency   map[string]map[string]struct{}
	extended    map[string]*ExtendedNode
	modules     map[string]string
	entrypoints []EntryPoint
	latest      *EntryPoint
}

func New() *Graph {
	return &Graph{
		adjacency: make(map[string]map[string]struct{}),
		extended:  make(map[string]*ExtendedNode),
		modules:   make(map[string]string),
	}
}

// AddNode registers name once. The declaring module is only recorded while
// none is known yet: the first non-empty value wins.
func (g *Graph) AddNode(name, module string) error {
	if name == "" {
		return errors.Structural("empty node name", name)
	}

	if _, ok := g.adjacency[name]; !ok {
		g.adjacency[name] = make(map[string]struct{})
		g.extended[name] = &ExtendedNode{Meta: NodeMeta{Module: module}}
		g.modules[name] = module
		return nil
	}

	if g.modules[name] == "" {
		g.modules[name] = module
	}
	if g.extended[name].Meta.Module == "" {
		g.extended[name].Meta.Module = module
	}
	return nil
}

// AddEdge links src to dst. The adjacency keeps dst once per source while the
// provenance log records every call, so repeated calls with different lines
// are all retained.
func (g *Graph) AddEdge(src, dst string, line int, module, extModule string) error {
	if err := g.AddNode(src, module); err != nil {
		return err
	}
	if err := g.AddNode(dst, ""); err != nil {
		return err
	}

	g.adjacency[src][dst] = struct{}{}
	ext := g.extended[src]
	ext.Dsts = append(ext.Dsts, EdgeRecord{
		Dst:       dst,
		Line:      line,
		Module:    module,
		ExtModule: extModule,
	})
	return nil
}

// Get returns the adjacency with destinations sorted.
func (g *Graph) Get() map[string][]string {
	out := make(map[string][]string, len(g.adjacency))
	for src, dsts := range g.adjacency {
		list := make([]string, 0, len(dsts))
		for dst := range dsts {
			list = append(list, dst)
		}
		sort.Strings(list)
		out[src] = list
	}
	return out
}

// Extended returns a copy of the provenance view.
func (g *Graph) Extended() map[string]ExtendedNode {
	out := make(map[string]ExtendedNode, len(g.extended))
	for name, node := range g.extended {
		dsts := make([]EdgeRecord, len(node.Dsts))
		copy(dsts, node.Dsts)
		out[name] = ExtendedNode{Dsts: dsts, Meta: node.Meta}
	}
	return out
}

// Edges flattens the adjacency into [src, dst] pairs.
func (g *Graph) Edges() [][2]string {
	out := make([][2]string, 0)
	adj := g.Get()
	srcs := make([]string, 0, len(adj))
	for src := range adj {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		for _, dst := range adj[src] {
			out = append(out, [2]string{src, dst})
		}
	}
	return out
}

// Modules returns the declaring module recorded for every node.
func (g *Graph) Modules() map[string]string {
	out := make(map[string]string, len(g.modules))
	for k, v := range g.modules {
		out[k] = v
	}
	return out
}

// HasNode reports whether name is registered.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.adjacency[name]
	return ok
}

// NodeCount returns the number of registered nodes.
func (g *Graph) NodeCount() int {
	return len(g.adjacency)
}

// EdgeCount returns the number of deduplicated edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, dsts := range g.adjacency {
		n += len(dsts)
	}
	return n
}

// AddEntrypoint appends ep to the ordered entrypoint list and makes it the
// latest entrypoint.
func (g *Graph) AddEntrypoint(name, module string) {
	ep := EntryPoint{Name: name, Module: module}
	g.latest = &ep
	g.entrypoints = append(g.entrypoints, ep)
}

// Entrypoints returns the registered entrypoints in insertion order.
func (g *Graph) Entrypoints() []EntryPoint {
	out := make([]EntryPoint, len(g.entrypoints))
	copy(out, g.entrypoints)
	return out
}

// LatestEntrypoint returns the most recently registered entrypoint.
func (g *Graph) LatestEntrypoint() (EntryPoint, bool) {
	if g.latest == nil {
		return EntryPoint{}, false
	}
	return *g.latest, true
}

// Reachable returns every node reachable from the given roots, roots included,
// in breadth-first order.
func (g *Graph) Reachable(roots ...string) []string {
	seen := make(map[string]bool)
	var order []string
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		if _, ok := g.adjacency[r]; ok && !seen[r] {
			seen[r] = true
			queue = append(queue, r)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)

		next := make([]string, 0, len(g.adjacency[curr]))
		for dst := range g.adjacency[curr] {
			next = append(next, dst)
		}
		sort.Strings(next)
		for _, dst := range next {
			if !seen[dst] {
				seen[dst] = true
				queue = append(queue, dst)
			}
		}
	}
	return order
}
