package graph

import "sort"

// Layers computes a topological layering via Kahn's algorithm (spec §4.C
// step 3): layer 0 holds every node with in-degree 0; layer k+1 holds every
// remaining node whose predecessors all live in layers ≤ k. Each layer is
// sorted for deterministic output. Layers assumes g is acyclic; call
// DetectCycles first.
func (g *Graph) Layers() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	for id, deps := range g.deps {
		remaining[id] = len(deps)
	}

	var layers [][]string
	placed := map[string]bool{}

	for len(placed) < len(g.nodes) {
		var layer []string
		for id, n := range remaining {
			if placed[id] {
				continue
			}
			if n == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			// Should not happen on an acyclic graph; avoid an infinite loop.
			break
		}
		sort.Strings(layer)
		layers = append(layers, layer)
		for _, id := range layer {
			placed[id] = true
			for _, dependent := range sortedKeys(g.rdeps[id]) {
				remaining[dependent]--
			}
		}
	}
	return layers
}

// MaxUsefulParallelism returns the maximum layer width among layers that
// contain at least one outdated node (spec §4.C step 4). outdated is the
// set of node ids the staleness oracle flagged for rebuild.
func MaxUsefulParallelism(layers [][]string, outdated map[string]bool) int {
	max := 0
	for _, layer := range layers {
		hasOutdated := false
		for _, id := range layer {
			if outdated[id] {
				hasOutdated = true
				break
			}
		}
		if hasOutdated && len(layer) > max {
			max = len(layer)
		}
	}
	return max
}
