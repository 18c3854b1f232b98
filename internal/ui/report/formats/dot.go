package formats

import (
	"fmt"
	"strings"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/shared/util"
)

// DOTGenerator renders the call graph with one cluster per internal module.
type DOTGenerator struct {
	result *analysis.Result
}

func NewDOTGenerator(res *analysis.Result) *DOTGenerator {
	return &DOTGenerator{result: res}
}

func (d *DOTGenerator) Generate() (string, error) {
	if d.result == nil {
		return "", fmt.Errorf("dot: no analysis result")
	}
	res := d.result
	var buf strings.Builder

	buf.WriteString("digraph callgraph {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n")
	buf.WriteString("  overlap=false;\n\n")

	entry := entrypointSet(res)
	internal, external := groupNodes(res)
	modules := util.SortedStringKeys(internal)
	clusterIDs := makeIDs(modules)

	for _, mod := range modules {
		buf.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", clusterIDs[mod]))
		buf.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeLabel(mod)))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
		for _, name := range internal[mod] {
			if entry[name] {
				buf.WriteString(fmt.Sprintf("    \"%s\" [fillcolor=\"lightblue\", color=\"steelblue\", penwidth=2.0];\n", escapeLabel(name)))
			} else {
				buf.WriteString(fmt.Sprintf("    \"%s\" [color=\"darkslategrey\"];\n", escapeLabel(name)))
			}
		}
		buf.WriteString("  }\n\n")
	}

	if len(external) > 0 {
		buf.WriteString("  // External and builtin\n")
		buf.WriteString("  node [fillcolor=\"gainsboro\", style=\"rounded,filled\", color=\"grey\"];\n")
		for _, name := range external {
			buf.WriteString(fmt.Sprintf("  \"%s\";\n", escapeLabel(name)))
		}
		buf.WriteString("\n")
	}

	mods := nodeModules(res)
	for _, pair := range res.Edges {
		from, to := escapeLabel(pair[0]), escapeLabel(pair[1])
		if isInternal(res, mods[pair[1]]) {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\"];\n", from, to))
		} else {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"grey\", style=dashed];\n", from, to))
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
