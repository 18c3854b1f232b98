package formats

import (
	"fmt"
	"strings"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/shared/util"
)

// externalAggregationThreshold collapses external callees into one node per
// external module once a graph references more of them than this.
const externalAggregationThreshold = 10

type MermaidGenerator struct {
	result *analysis.Result
}

func NewMermaidGenerator(res *analysis.Result) *MermaidGenerator {
	return &MermaidGenerator{result: res}
}

func (m *MermaidGenerator) Generate() (string, error) {
	if m.result == nil {
		return "", fmt.Errorf("mermaid: no analysis result")
	}
	res := m.result
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	internal, external := groupNodes(res)
	mods := nodeModules(res)
	aggregate := len(external) > externalAggregationThreshold

	// Aggregated externals are addressed by their module name.
	target := func(name string) string {
		if aggregate && !isInternal(res, mods[name]) && mods[name] != "" {
			return "ext:" + mods[name]
		}
		return name
	}

	names := make([]string, 0)
	modules := util.SortedStringKeys(internal)
	for _, mod := range modules {
		names = append(names, internal[mod]...)
	}
	externalNodes := make([]string, 0)
	seenExternal := make(map[string]bool)
	for _, name := range external {
		t := target(name)
		if !seenExternal[t] {
			seenExternal[t] = true
			externalNodes = append(externalNodes, t)
		}
	}
	names = append(names, externalNodes...)
	ids := makeIDs(names)
	groupIDs := makeIDs(modules)

	entry := entrypointSet(res)
	for _, mod := range modules {
		b.WriteString(fmt.Sprintf("  subgraph sg_%s[\"%s\"]\n", groupIDs[mod], escapeLabel(mod)))
		for _, name := range internal[mod] {
			shape := fmt.Sprintf("[\"%s\"]", escapeLabel(name))
			if entry[name] {
				shape = fmt.Sprintf("([\"%s\"])", escapeLabel(name))
			}
			b.WriteString(fmt.Sprintf("    %s%s\n", ids[name], shape))
		}
		b.WriteString("  end\n")
	}
	for _, name := range externalNodes {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]:::external\n", ids[name], escapeLabel(name)))
	}

	seenEdge := make(map[string]bool)
	for _, pair := range res.Edges {
		from, to := ids[target(pair[0])], ids[target(pair[1])]
		key := from + "->" + to
		if seenEdge[key] {
			continue
		}
		seenEdge[key] = true
		if isInternal(res, mods[pair[1]]) {
			b.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
		} else {
			b.WriteString(fmt.Sprintf("  %s -.-> %s\n", from, to))
		}
	}

	b.WriteString("  classDef external fill:#e5e7eb,stroke:#9ca3af,color:#111827;\n")
	return b.String(), nil
}
