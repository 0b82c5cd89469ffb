package graph

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/bbiangul/lexgraph/citation"
	"github.com/bbiangul/lexgraph/corpus"
)

// defaultConcurrency bounds the citation extraction workers.
const defaultConcurrency = 8

// extractBatch is the number of nodes one extraction worker handles.
const extractBatch = 256

// EdgeOptions controls edge construction.
type EdgeOptions struct {
	// Extractor finds citations. nil uses the built-in patterns.
	Extractor *citation.Extractor
	// Concurrency bounds parallel citation extraction (default 8).
	Concurrency int
}

// BuildEdges runs pass 2 over a finished NodeSet. It produces:
//
//   - contains edges for every raw hierarchy relation whose two keys are
//     both in the lookup, fanned out over all nodes of the relation's
//     parent and child types under each key
//   - cites edges from citable content nodes to the statute section nodes
//     their cleaned text cites, excluding self-citation
//   - references edges from the first chunk of each document to the
//     sections its raw content cites
//
// The result is sorted by (from, to, rel) with duplicates removed. ctx is
// only checked between extraction batches.
func BuildEdges(ctx context.Context, set *NodeSet, raw *corpus.Corpus, opts EdgeOptions) ([]Edge, error) {
	if opts.Extractor == nil {
		opts.Extractor = citation.New()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	edges := containmentEdges(set, raw)

	cites, err := citationEdges(ctx, set, opts)
	if err != nil {
		return nil, err
	}
	edges = append(edges, cites...)
	edges = append(edges, referenceEdges(set, raw.Documents, opts.Extractor)...)

	edges = SortEdges(edges)

	counts := CountEdges(edges)
	slog.Info("graph: built edges",
		"total", len(edges),
		"contains", counts[RelContains],
		"cites", counts[RelCites],
		"references", counts[RelReferences],
	)
	return edges, nil
}

// SortEdges orders edges by (from, to, rel) and drops duplicates in place.
func SortEdges(edges []Edge) []Edge {
	slices.SortFunc(edges, compareEdges)
	return slices.CompactFunc(edges, func(a, b Edge) bool {
		return compareEdges(a, b) == 0
	})
}

func compareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.FromID, b.FromID),
		cmp.Compare(a.ToID, b.ToID),
		cmp.Compare(a.RelType, b.RelType),
	)
}

// CountEdges returns the number of edges per relationship type.
func CountEdges(edges []Edge) map[RelType]int {
	counts := make(map[RelType]int, len(RelTypes))
	for _, e := range edges {
		counts[e.RelType]++
	}
	return counts
}

// ---------------------------------------------------------------------------
// Containment
// ---------------------------------------------------------------------------

func containmentEdges(set *NodeSet, raw *corpus.Corpus) []Edge {
	var edges []Edge
	link := func(rels []Relation) {
		for _, rel := range rels {
			parents := set.ofType(set.Lookup.Get(rel.Parent), rel.ParentType)
			children := set.ofType(set.Lookup.Get(rel.Child), rel.ChildType)
			if len(parents) == 0 || len(children) == 0 {
				continue
			}
			edges = appendFanOut(edges, parents, children, RelContains)
		}
	}
	for _, r := range raw.Code {
		link(CodeRelations(r))
	}
	for _, r := range raw.Constitution {
		link(ConstitutionRelations(r))
	}
	return edges
}

// ofType keeps the ids whose node has type typ. Synthetic and content
// nodes can share a key, so edges filter by type before fanning out.
func (s *NodeSet) ofType(ids []int64, typ NodeType) []int64 {
	var out []int64
	for _, id := range ids {
		if n, ok := s.Node(id); ok && n.NodeType == typ {
			out = append(out, id)
		}
	}
	return out
}

// appendFanOut links every from id to every to id. A node never links to
// itself.
func appendFanOut(edges []Edge, from, to []int64, rel RelType) []Edge {
	for _, f := range from {
		for _, t := range to {
			if f == t {
				continue
			}
			edges = append(edges, Edge{FromID: f, ToID: t, RelType: rel})
		}
	}
	return edges
}

// ---------------------------------------------------------------------------
// Citations
// ---------------------------------------------------------------------------

// citationEdges scans citable nodes in parallel. Each worker owns one
// result slot; slots are concatenated in node order afterwards.
func citationEdges(ctx context.Context, set *NodeSet, opts EdgeOptions) ([]Edge, error) {
	var citable []Node
	for _, n := range set.Nodes {
		if !n.Synthetic && n.NodeType.Citable() {
			citable = append(citable, n)
		}
	}

	batches := (len(citable) + extractBatch - 1) / extractBatch
	results := make([][]Edge, batches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for b := 0; b < batches; b++ {
		lo := b * extractBatch
		hi := min(lo+extractBatch, len(citable))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var local []Edge
			for _, n := range citable[lo:hi] {
				for _, ref := range opts.Extractor.Extract(set.Texts[n.ID]) {
					targets := set.ofType(set.Lookup.Get(SectionKey(ref)), TypeSection)
					local = appendFanOut(local, []int64{n.ID}, targets, RelCites)
				}
			}
			results[b] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("graph.BuildEdges: extracting citations: %w", err)
	}

	return slices.Concat(results...), nil
}

// ---------------------------------------------------------------------------
// Document references
// ---------------------------------------------------------------------------

// referenceEdges scans raw document content, so link targets removed by
// cleaning are still seen. Edges leave the document's first chunk only.
func referenceEdges(set *NodeSet, docs []corpus.DocumentRecord, ex *citation.Extractor) []Edge {
	var edges []Edge
	for _, d := range docs {
		if d.Filename == "" {
			continue
		}
		ids := set.Lookup.Get(DocumentKey(d.Filename))
		if len(ids) == 0 {
			continue
		}
		first := ids[:1]
		for _, ref := range ex.Extract(d.Content) {
			targets := set.ofType(set.Lookup.Get(SectionKey(ref)), TypeSection)
			edges = appendFanOut(edges, first, targets, RelReferences)
		}
	}
	return edges
}
