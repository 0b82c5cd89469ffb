// Package lexgraph builds a citation and containment graph over a legal
// corpus: statutes, constitutional sections, authorities, courts, popular
// names and free-form documents. Every content record becomes one or more
// chunk nodes, grouping levels become synthetic nodes, and edges record
// containment, statutory citation and document references. The result is
// written to a SQLite database with optional vector embeddings, and can be
// mirrored into PostgreSQL and Neo4j.
package lexgraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bbiangul/lexgraph/citation"
	"github.com/bbiangul/lexgraph/corpus"
	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/graph"
	"github.com/bbiangul/lexgraph/metrics"
	"github.com/bbiangul/lexgraph/parser"
	"github.com/bbiangul/lexgraph/store"
	"github.com/bbiangul/lexgraph/store/neo4j"
	"github.com/bbiangul/lexgraph/store/postgres"
)

// Graph is the in-memory result of BuildGraph.
type Graph struct {
	Nodes      *graph.NodeSet
	Edges      []graph.Edge
	CleanStats corpus.CleanStats
}

// EdgeCounts returns the number of edges per relationship type.
func (g *Graph) EdgeCounts() map[graph.RelType]int {
	return graph.CountEdges(g.Edges)
}

// Report summarises a Run.
type Report struct {
	RunID      string                `json:"run_id"`
	Output     string                `json:"output"`
	Nodes      int                   `json:"nodes"`
	Synthetic  int                   `json:"synthetic"`
	Edges      map[graph.RelType]int `json:"edges"`
	Embedded   int                   `json:"embedded"`
	Dimensions int                   `json:"dimensions,omitempty"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbedder uses e instead of the backend named by the config.
func WithEmbedder(e embed.Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithMetrics records into m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithExtractor overrides the citation patterns.
func WithExtractor(ex *citation.Extractor) Option {
	return func(p *Pipeline) { p.extractor = ex }
}

// Pipeline runs graph builds for one configuration.
type Pipeline struct {
	cfg       Config
	embedder  embed.Embedder
	metrics   *metrics.Metrics
	extractor *citation.Extractor
	parsers   *parser.Registry
}

// New validates cfg and returns a Pipeline. The embedding backend is
// created here, so an unknown provider fails before any work is done.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, parsers: parser.NewRegistry()}
	for _, o := range opts {
		o(p)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.extractor == nil {
		p.extractor = citation.New()
	}
	if p.embedder == nil && !p.cfg.SkipEmbeddings {
		e, err := embed.New(p.cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		p.embedder = e
	}
	return p, nil
}

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }

// BuildGraph cleans raw, builds nodes and then edges over the completed
// node set, and checks the construction invariants. ctx is checked
// between passes; an invariant failure wraps ErrInvariantViolation.
func (p *Pipeline) BuildGraph(ctx context.Context, raw *corpus.Corpus) (*Graph, error) {
	stop := p.metrics.Timer("clean")
	cleaned, stats := corpus.Clean(raw, parser.Normalize)
	slog.Info("lexgraph: cleaned records", "dropped", stats.Total(), "elapsed", stop())
	for table, n := range stats {
		p.metrics.AddSkipped(table, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = p.metrics.Timer("nodes")
	set := graph.BuildNodes(raw, cleaned, graph.NodeOptions{
		MaxTokens: p.cfg.MaxChunkTokens,
		Overlap:   p.cfg.ChunkOverlap,
	})
	slog.Info("lexgraph: node pass done", "nodes", len(set.Nodes), "elapsed", stop())
	for src, n := range set.Skipped {
		p.metrics.AddSkipped(string(src), n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = p.metrics.Timer("edges")
	edges, err := graph.BuildEdges(ctx, set, raw, graph.EdgeOptions{
		Extractor:   p.extractor,
		Concurrency: p.cfg.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("building edges: %w", err)
	}
	slog.Info("lexgraph: edge pass done", "edges", len(edges), "elapsed", stop())

	if err := graph.Validate(set, edges); err != nil {
		return nil, fmt.Errorf("validating graph: %w", err)
	}

	p.countGraph(set, edges)
	return &Graph{Nodes: set, Edges: edges, CleanStats: stats}, nil
}

func (p *Pipeline) countGraph(set *graph.NodeSet, edges []graph.Edge) {
	type bucket struct {
		src       graph.Source
		synthetic bool
	}
	nodes := make(map[bucket]int)
	for _, n := range set.Nodes {
		nodes[bucket{n.Source, n.Synthetic}]++
	}
	for b, n := range nodes {
		p.metrics.AddNodes(string(b.src), b.synthetic, n)
	}
	for rel, n := range graph.CountEdges(edges) {
		p.metrics.AddEdges(string(rel), n)
	}
}

// Run executes a full build: read the corpus and documents directory,
// build the graph, write the output store, mirror to the configured
// exports, embed every content node and write the metrics textfile.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	output := p.cfg.ResolveOutput()
	slog.Info("lexgraph: starting build", "run_id", runID, "input", p.cfg.Input, "output", output)

	raw, err := p.readInput(ctx)
	if err != nil {
		return nil, err
	}

	g, err := p.BuildGraph(ctx, raw)
	if err != nil {
		return nil, err
	}

	st, err := store.Create(output)
	if err != nil {
		return nil, fmt.Errorf("creating output store: %w", err)
	}
	defer st.Close()

	stop := p.metrics.Timer("write")
	if err := st.WriteGraph(ctx, g.Nodes, g.Edges); err != nil {
		return nil, fmt.Errorf("writing graph: %w", err)
	}
	slog.Info("lexgraph: graph written", "path", output, "elapsed", stop())

	embeddable, synthetic := g.Nodes.Counts()
	info := map[string]string{
		"run_id":     runID,
		"started_at": start.UTC().Format(time.RFC3339),
		"input":      p.cfg.Input,
		"nodes":      strconv.Itoa(len(g.Nodes.Nodes)),
		"embeddable": strconv.Itoa(embeddable),
		"synthetic":  strconv.Itoa(synthetic),
		"edges":      strconv.Itoa(len(g.Edges)),
	}
	for rel, n := range g.EdgeCounts() {
		info["edges_"+string(rel)] = strconv.Itoa(n)
	}
	comps := graph.Components(g.Nodes, g.Edges)
	info["components"] = strconv.Itoa(comps.Components)
	info["largest_component"] = strconv.Itoa(comps.Largest)
	info["isolated_nodes"] = strconv.Itoa(comps.Isolated)
	if err := st.WriteBuildInfo(ctx, info); err != nil {
		return nil, err
	}

	var pg *postgres.Exporter
	if p.cfg.Postgres.DSN != "" {
		pg, err = postgres.Open(ctx, p.cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		stop := p.metrics.Timer("postgres")
		if err := pg.ExportGraph(ctx, g.Nodes, g.Edges); err != nil {
			return nil, err
		}
		slog.Info("lexgraph: postgres export done", "elapsed", stop())
	}

	if p.cfg.Neo4j.URI != "" {
		if err := p.exportNeo4j(ctx, g); err != nil {
			return nil, err
		}
	}

	report := &Report{
		RunID:     runID,
		Output:    output,
		Nodes:     len(g.Nodes.Nodes),
		Synthetic: synthetic,
		Edges:     g.EdgeCounts(),
	}

	if p.cfg.SkipEmbeddings {
		slog.Info("lexgraph: skipping embeddings")
	} else {
		res, dim, err := p.embedNodes(ctx, st, pg, g.Nodes)
		if err != nil {
			return nil, err
		}
		report.Embedded = res.Embedded
		report.Dimensions = dim
	}

	report.Elapsed = time.Since(start)
	if err := st.WriteBuildInfo(ctx, map[string]string{
		"finished_at": time.Now().UTC().Format(time.RFC3339),
		"embedded":    strconv.Itoa(report.Embedded),
	}); err != nil {
		return nil, err
	}

	if p.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			return nil, err
		}
	}

	slog.Info("lexgraph: build complete",
		"run_id", runID,
		"nodes", report.Nodes,
		"edges", len(g.Edges),
		"embedded", report.Embedded,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// readInput reads the corpus database and appends the documents found in
// DocsDir.
func (p *Pipeline) readInput(ctx context.Context) (*corpus.Corpus, error) {
	r, err := corpus.Open(p.cfg.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, p.cfg.Input)
		}
		return nil, err
	}
	defer r.Close()

	raw, err := r.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	if p.cfg.DocsDir != "" {
		docs, err := p.parsers.LoadDir(ctx, p.cfg.DocsDir, p.cfg.Dataset, p.cfg.Concurrency)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrInputNotFound, p.cfg.DocsDir)
			}
			return nil, err
		}
		appendDocuments(raw, docs)
	}
	return raw, nil
}

// appendDocuments adds docs after the corpus's own documents, numbering
// them after the highest existing id.
func appendDocuments(raw *corpus.Corpus, docs []corpus.DocumentRecord) {
	var next int64
	for _, d := range raw.Documents {
		next = max(next, d.ID)
	}
	for _, d := range docs {
		next++
		d.ID = next
		raw.Documents = append(raw.Documents, d)
	}
	if len(docs) > 0 {
		slog.Info("lexgraph: added documents from directory", "count", len(docs), "total", len(raw.Documents))
	}
}

func (p *Pipeline) exportNeo4j(ctx context.Context, g *Graph) error {
	ex, err := neo4j.Open(ctx, p.cfg.Neo4j)
	if err != nil {
		return err
	}
	defer ex.Close(ctx)

	stop := p.metrics.Timer("neo4j")
	if err := ex.ExportGraph(ctx, g.Nodes, g.Edges); err != nil {
		return err
	}
	slog.Info("lexgraph: neo4j export done", "elapsed", stop())
	return nil
}

// embedNodes runs the embedding pass, writing every batch to the output store
// and, when configured, the postgres mirror.
func (p *Pipeline) embedNodes(ctx context.Context, st *store.Store, pg *postgres.Exporter, set *graph.NodeSet) (embed.Result, int, error) {
	items := embed.ItemsFromNodes(set)
	sample := ""
	for _, it := range items {
		if it.Text != "" {
			sample = it.Text
			break
		}
	}
	if sample == "" {
		slog.Info("lexgraph: no text to embed")
		return embed.Result{}, 0, nil
	}

	dim, err := embed.Resolve(ctx, p.embedder, sample)
	if err != nil {
		return embed.Result{}, 0, err
	}
	if err := st.WriteModelInfo(ctx, p.embedder.Model(), dim); err != nil {
		return embed.Result{}, 0, err
	}
	slog.Info("lexgraph: embedding nodes", "model", p.embedder.Model(), "dimensions", dim, "nodes", len(items))

	b := embed.NewBatcher(p.embedder, embed.BatcherOptions{
		BatchSize: p.cfg.Embedding.BatchSize,
		OnBatch:   p.metrics.ObserveEmbedBatch,
		OnRetry:   p.metrics.IncEmbedRetry,
	})

	stop := p.metrics.Timer("embed")
	res, err := b.Run(ctx, items, func(ctx context.Context, ids []int64, vecs [][]float32) error {
		for i, v := range vecs {
			if len(v) != dim {
				return fmt.Errorf("%w: node %d has %d values, store expects %d", ErrDimensionMismatch, ids[i], len(v), dim)
			}
		}
		if err := st.WriteEmbeddings(ctx, ids, vecs); err != nil {
			return err
		}
		if pg != nil {
			return pg.ExportEmbeddings(ctx, ids, vecs)
		}
		return nil
	})
	if err != nil {
		return res, dim, err
	}
	slog.Info("lexgraph: embedding pass done", "embedded", res.Embedded, "elapsed", stop())
	return res, dim, nil
}
