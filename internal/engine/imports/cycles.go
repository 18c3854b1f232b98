package imports

import "sort"

// Cycles returns the import cycles of the graph, each rotated to start at
// its smallest module name.
func (r *Resolver) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	names := make([]string, 0, len(r.graph))
	for name := range r.graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			r.findCycles(name, visited, onStack, []string{}, &cycles)
		}
	}
	return cycles
}

func (r *Resolver) findCycles(curr string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range r.Imports(curr) {
		if onStack[next] {
			cycleStart := -1
			for i, mod := range path {
				if mod == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, rotateToMin(cycle))
			}
		} else if !visited[next] {
			if _, ok := r.graph[next]; ok {
				r.findCycles(next, visited, onStack, path, cycles)
			}
		}
	}

	onStack[curr] = false
}

func rotateToMin(cycle []string) []string {
	minIdx := 0
	for i, name := range cycle {
		if name < cycle[minIdx] {
			minIdx = i
		}
	}
	return append(append([]string{}, cycle[minIdx:]...), cycle[:minIdx]...)
}
