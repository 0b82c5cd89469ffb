package graph

import "slices"

// Neighborhood walks edges in both directions from seeds for up to
// maxDepth hops and returns every node reached, seeds included, sorted.
// When rels is non-empty only edges of those kinds are followed.
func Neighborhood(edges []Edge, seeds []int64, maxDepth int, rels ...RelType) []int64 {
	if len(seeds) == 0 || maxDepth < 0 {
		return nil
	}

	// Build adjacency: node ID -> neighbour node IDs.
	neighbours := make(map[int64][]int64)
	for _, e := range edges {
		if len(rels) > 0 && !slices.Contains(rels, e.RelType) {
			continue
		}
		neighbours[e.FromID] = append(neighbours[e.FromID], e.ToID)
		neighbours[e.ToID] = append(neighbours[e.ToID], e.FromID)
	}

	visited := make(map[int64]bool)
	queue := make([]int64, 0, len(seeds))
	for _, id := range seeds {
		if !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var next []int64
		for _, id := range queue {
			for _, nid := range neighbours[id] {
				if !visited[nid] {
					visited[nid] = true
					next = append(next, nid)
				}
			}
		}
		queue = next
	}

	out := make([]int64, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
