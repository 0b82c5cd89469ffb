package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvariant is matched by every InvariantError.
var ErrInvariant = errors.New("graph: invariant violated")

// InvariantError reports a broken construction contract. It is a
// programming error in node or edge building, never a data defect, and
// the run must not continue.
type InvariantError struct {
	Check  string
	Detail string
	Counts map[string]int
}

func (e *InvariantError) Error() string {
	keys := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, e.Counts[k])
	}
	return fmt.Sprintf("graph: invariant %q violated: %s (%s)", e.Check, e.Detail, strings.Join(parts, " "))
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Validate checks the node set and edge list against the graph's
// construction invariants and returns the first violation found.
func Validate(set *NodeSet, edges []Edge) error {
	counts := map[string]int{
		"nodes":      len(set.Nodes),
		"texts":      len(set.Texts),
		"chunk_meta": len(set.ChunkMeta),
		"edges":      len(edges),
	}
	fail := func(check, format string, args ...any) error {
		return &InvariantError{Check: check, Detail: fmt.Sprintf(format, args...), Counts: counts}
	}

	if len(set.Texts) != len(set.Nodes) {
		return fail("texts", "%d texts for %d nodes", len(set.Texts), len(set.Nodes))
	}

	type triple struct {
		src Source
		id  string
		idx int
	}
	seen := make(map[triple]struct{}, len(set.Nodes))
	var embeddable int
	for i, n := range set.Nodes {
		if i > 0 && n.ID != set.Nodes[i-1].ID+1 {
			return fail("node_ids", "node %d follows %d", n.ID, set.Nodes[i-1].ID)
		}
		if _, ok := set.Texts[n.ID]; !ok {
			return fail("texts", "node %d has no text", n.ID)
		}
		t := triple{n.Source, n.SourceID, n.ChunkIdx}
		if _, dup := seen[t]; dup {
			return fail("node_key", "duplicate (%s, %s, %d)", n.Source, n.SourceID, n.ChunkIdx)
		}
		seen[t] = struct{}{}
		if !n.Synthetic {
			embeddable++
		}
	}

	for k, ids := range set.Lookup {
		for idx, id := range ids {
			n, ok := set.Node(id)
			if !ok || n.Key() != k || n.ChunkIdx != idx {
				return fail("lookup", "key %s position %d maps to node %d", k, idx, id)
			}
		}
	}

	if len(set.ChunkMeta) != embeddable {
		return fail("chunk_meta", "%d entries for %d content nodes", len(set.ChunkMeta), embeddable)
	}
	for _, m := range set.ChunkMeta {
		n, ok := set.Node(m.NodeID)
		if !ok || n.Synthetic {
			return fail("chunk_meta", "entry for unknown or synthetic node %d", m.NodeID)
		}
		if m.CharStart < 0 || m.CharStart > m.CharEnd || m.CharEnd > set.textLen[m.NodeID] {
			return fail("offsets", "node %d span [%d,%d) outside text of %d bytes",
				m.NodeID, m.CharStart, m.CharEnd, set.textLen[m.NodeID])
		}
	}

	for i, e := range edges {
		from, ok1 := set.Node(e.FromID)
		_, ok2 := set.Node(e.ToID)
		if !ok1 || !ok2 {
			return fail("edge_endpoints", "edge %d->%d references a missing node", e.FromID, e.ToID)
		}
		if i > 0 && compareEdges(edges[i-1], e) >= 0 {
			return fail("edge_order", "edge %d->%d %s out of order or duplicated", e.FromID, e.ToID, e.RelType)
		}
		switch e.RelType {
		case RelCites:
			if e.FromID == e.ToID {
				return fail("self_cite", "node %d cites itself", e.FromID)
			}
		case RelContains:
			if !from.Synthetic {
				return fail("contains_parent", "contains edge from content node %d", e.FromID)
			}
		}
	}
	return nil
}
