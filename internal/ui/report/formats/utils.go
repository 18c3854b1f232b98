package formats

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"reachgraph/internal/engine/analysis"
)

func sanitizeID(name string) string {
	if name == "" {
		return "n"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "n_" + out
	}
	return out
}

// makeIDs assigns unique identifiers in the order of names, suffixing
// collisions of the sanitized form.
func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// nodeModules maps every call graph node to its declaring module.
func nodeModules(res *analysis.Result) map[string]string {
	out := make(map[string]string, len(res.Extended))
	for name, node := range res.Extended {
		out[name] = node.Meta.Module
	}
	for name := range res.Graph {
		if _, ok := out[name]; !ok {
			out[name] = ""
		}
	}
	return out
}

func isInternal(res *analysis.Result, module string) bool {
	_, ok := res.Modules.Internal[module]
	return ok
}

// groupNodes buckets nodes by internal module. Nodes of external or unknown
// modules land in the second return value. Everything is sorted.
func groupNodes(res *analysis.Result) (map[string][]string, []string) {
	internal := make(map[string][]string)
	var external []string
	for name, mod := range nodeModules(res) {
		if isInternal(res, mod) {
			internal[mod] = append(internal[mod], name)
			continue
		}
		external = append(external, name)
	}
	for mod := range internal {
		sort.Strings(internal[mod])
	}
	sort.Strings(external)
	return internal, external
}

func entrypointSet(res *analysis.Result) map[string]bool {
	out := make(map[string]bool, len(res.Entrypoints))
	for _, ep := range res.Entrypoints {
		out[ep.Name] = true
	}
	return out
}
