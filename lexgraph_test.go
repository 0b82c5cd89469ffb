package lexgraph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bbiangul/lexgraph/corpus"
	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/graph"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Input = "corpus.db"
	cfg.SkipEmbeddings = true
	return cfg
}

func sampleCorpus() *corpus.Corpus {
	return &corpus.Corpus{
		Code: []corpus.CodeRecord{
			{ID: 1, TitleNum: "2.2", TitleName: "Administration of Government", ChapterNum: "37",
				ChapterName: "Virginia Freedom of Information Act", Section: "2.2-3700",
				Title: "Short title; policy", Body: "<p>This chapter may be cited as the Virginia Freedom of Information Act. See § 2.2-3704.</p>"},
			{ID: 2, TitleNum: "2.2", TitleName: "Administration of Government", ChapterNum: "37",
				ChapterName: "Virginia Freedom of Information Act", Section: "2.2-3704",
				Title: "Public records to be open", Body: "Except as otherwise specifically provided by law, all public records shall be open."},
		},
		Courts: []corpus.CourtRecord{
			{ID: 9, Name: "Circuit Court", Locality: "Richmond", CourtType: "Circuit", District: "13th", City: "Richmond"},
		},
		Documents: []corpus.DocumentRecord{
			{ID: 1, Dataset: "manuals", Filename: "foia.html", Title: "FOIA guide",
				Content: `<p>Read <a href="https://law.lis.virginia.gov/vacode/2.2-3700/">the act</a>.</p>`},
		},
	}
}

func TestBuildGraph(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g, err := p.BuildGraph(context.Background(), sampleCorpus())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	embeddable, synthetic := g.Nodes.Counts()
	// title + chapter; two sections, one court, one document.
	if synthetic != 2 || embeddable != 4 {
		t.Errorf("counts = %d embeddable / %d synthetic, want 4 / 2", embeddable, synthetic)
	}

	counts := g.EdgeCounts()
	want := map[graph.RelType]int{
		graph.RelContains:   3, // title->chapter, chapter->each section
		graph.RelCites:      1, // 2.2-3700 -> 2.2-3704
		graph.RelReferences: 1, // foia.html -> 2.2-3700
	}
	for rel, n := range want {
		if counts[rel] != n {
			t.Errorf("%s edges = %d, want %d", rel, counts[rel], n)
		}
	}
}

func TestBuildGraphStripsMarkup(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g, err := p.BuildGraph(context.Background(), sampleCorpus())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	for id, text := range g.Nodes.Texts {
		for _, tag := range []string{"<p>", "</p>", "<a "} {
			if strings.Contains(strings.ToLower(text), tag) {
				t.Errorf("node %d text still contains %q: %q", id, tag, text)
			}
		}
	}
}

func TestBuildGraphCancelled(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.BuildGraph(ctx, sampleCorpus()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuildGraphEmptyCorpus(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g, err := p.BuildGraph(context.Background(), &corpus.Corpus{})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if len(g.Nodes.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected an empty graph, got %d nodes and %d edges", len(g.Nodes.Nodes), len(g.Edges))
	}
}

func TestBuildGraphRecordsMetrics(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.BuildGraph(context.Background(), sampleCorpus()); err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	mfs, err := p.Metrics().Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"lexgraph_nodes_total", "lexgraph_edges_total", "lexgraph_pass_duration_seconds"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.SkipEmbeddings = false
	cfg.Embedding.Provider = "word2vec"

	_, err := New(cfg)
	if !errors.Is(err, ErrInvalidConfig) && !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want invalid config or unknown backend", err)
	}
}

func TestNewWithEmbedder(t *testing.T) {
	cfg := testConfig()
	cfg.SkipEmbeddings = false
	local := embed.NewLocal(8)

	p, err := New(cfg, WithEmbedder(local))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.embedder != local {
		t.Error("WithEmbedder was not applied")
	}
}

func TestAppendDocuments(t *testing.T) {
	raw := &corpus.Corpus{Documents: []corpus.DocumentRecord{{ID: 4, Filename: "a.html"}, {ID: 2, Filename: "b.html"}}}
	appendDocuments(raw, []corpus.DocumentRecord{{Filename: "c.txt"}, {Filename: "d.pdf"}})

	if len(raw.Documents) != 4 {
		t.Fatalf("documents = %d, want 4", len(raw.Documents))
	}
	if raw.Documents[2].ID != 5 || raw.Documents[3].ID != 6 {
		t.Errorf("appended ids = %d, %d, want 5, 6", raw.Documents[2].ID, raw.Documents[3].ID)
	}
}

func TestErrorAliases(t *testing.T) {
	err := &graph.InvariantError{Check: "edge_order"}
	if !errors.Is(err, ErrInvariantViolation) {
		t.Error("InvariantError should match ErrInvariantViolation")
	}
}
