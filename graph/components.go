package graph

import "log/slog"

// ComponentStats summarises the connectivity of a graph when edge
// direction is ignored.
type ComponentStats struct {
	Components int `json:"components"`
	Largest    int `json:"largest"`
	// Isolated counts nodes with no edge at all. Each is also its own
	// component.
	Isolated int `json:"isolated"`
}

// Components finds the connected components of the node set under edges
// using a breadth-first walk. Edges naming unknown ids are ignored.
func Components(set *NodeSet, edges []Edge) ComponentStats {
	var stats ComponentStats
	if set == nil || len(set.Nodes) == 0 {
		return stats
	}

	// Map node ID -> index for a compact adjacency list.
	idIndex := make(map[int64]int, len(set.Nodes))
	for i, n := range set.Nodes {
		idIndex[n.ID] = i
	}
	adj := make([][]int, len(set.Nodes))
	for _, e := range edges {
		from, okF := idIndex[e.FromID]
		to, okT := idIndex[e.ToID]
		if !okF || !okT {
			continue
		}
		adj[from] = append(adj[from], to)
		adj[to] = append(adj[to], from)
	}

	visited := make([]bool, len(set.Nodes))
	for i := range set.Nodes {
		if visited[i] {
			continue
		}
		if len(adj[i]) == 0 {
			stats.Isolated++
		}
		size := 0
		queue := []int{i}
		visited[i] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			size++
			for _, next := range adj[node] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		stats.Components++
		stats.Largest = max(stats.Largest, size)
	}

	slog.Info("graph: components",
		"components", stats.Components,
		"largest", stats.Largest,
		"isolated", stats.Isolated,
	)
	return stats
}
