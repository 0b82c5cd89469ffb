package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/bbiangul/lexgraph/corpus"
)

// buildGraph runs cleaning, both passes and validation over raw.
func buildGraph(t *testing.T, raw *corpus.Corpus, opts NodeOptions) (*NodeSet, []Edge) {
	t.Helper()
	cleaned, _ := corpus.Clean(raw, nil)
	set := BuildNodes(raw, cleaned, opts)
	edges, err := BuildEdges(context.Background(), set, raw, EdgeOptions{})
	if err != nil {
		t.Fatalf("BuildEdges: %v", err)
	}
	if err := Validate(set, edges); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return set, edges
}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix
	}
	return strings.Join(parts, " ")
}

func nodesOfType(set *NodeSet, typ NodeType) []Node {
	var out []Node
	for _, n := range set.Nodes {
		if n.NodeType == typ {
			out = append(out, n)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// End-to-end scenario
// ---------------------------------------------------------------------------

func TestTitleAndSectionScenario(t *testing.T) {
	raw := &corpus.Corpus{Code: []corpus.CodeRecord{
		{ID: 1, TitleNum: "1", TitleName: "General Provisions"},
		{ID: 2, TitleNum: "1", TitleName: "General Provisions", Section: "1-200",
			Title: "The common law", Body: "The common law of England continues in full force. See § 1-200.1."},
	}}

	set, edges := buildGraph(t, raw, NodeOptions{})

	titles := nodesOfType(set, TypeTitle)
	sections := nodesOfType(set, TypeSection)
	if len(titles) != 1 || !titles[0].Synthetic {
		t.Fatalf("expected 1 synthetic title node, got %+v", titles)
	}
	if len(sections) != 1 || sections[0].Synthetic {
		t.Fatalf("expected 1 section node, got %+v", sections)
	}
	if len(set.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(set.Nodes))
	}
	if len(edges) != 1 {
		t.Fatalf("expected exactly 1 edge, got %+v", edges)
	}
	want := Edge{FromID: titles[0].ID, ToID: sections[0].ID, RelType: RelContains}
	if edges[0].FromID != want.FromID || edges[0].ToID != want.ToID || edges[0].RelType != want.RelType {
		t.Errorf("edge = %+v, want %+v", edges[0], want)
	}
}

func TestTitleAndSectionScenarioResolvedCitation(t *testing.T) {
	raw := &corpus.Corpus{Code: []corpus.CodeRecord{
		{ID: 1, TitleNum: "1", TitleName: "General Provisions"},
		{ID: 2, TitleNum: "1", TitleName: "General Provisions", Section: "1-200",
			Title: "The common law", Body: "The common law of England continues in full force. See § 1-200.1."},
		{ID: 3, TitleNum: "1", TitleName: "General Provisions", Section: "1-200.1",
			Title: "Exceptions", Body: "Nothing in this title abrogates the rules of evidence."},
	}}

	set, edges := buildGraph(t, raw, NodeOptions{})

	from := set.Lookup.Get(SectionKey("1-200"))[0]
	to := set.Lookup.Get(SectionKey("1-200.1"))[0]
	counts := CountEdges(edges)
	if counts[RelCites] != 1 {
		t.Fatalf("expected 1 cites edge, got %d (%+v)", counts[RelCites], edges)
	}
	var found bool
	for _, e := range edges {
		if e.RelType == RelCites && e.FromID == from && e.ToID == to {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cites edge %d->%d", from, to)
	}
	if counts[RelContains] != 2 {
		t.Errorf("expected 2 contains edges, got %d", counts[RelContains])
	}
}

// ---------------------------------------------------------------------------
// Node construction
// ---------------------------------------------------------------------------

func TestBuildNodesSyntheticFirstSeen(t *testing.T) {
	raw := &corpus.Corpus{
		Code: []corpus.CodeRecord{
			{TitleNum: "2", TitleName: "Administration", ChapterNum: "1", ChapterName: "First"},
			{TitleNum: "1", TitleName: "General", ChapterNum: "3", ChapterName: "Third"},
			{TitleNum: "2", TitleName: "Renamed", ChapterNum: "1", ChapterName: "Renamed"},
		},
		Constitution: []corpus.ConstitutionRecord{
			{ArticleID: 4, ArticleName: "Legislature"},
			{ArticleID: 1, ArticleName: "Bill of Rights"},
		},
	}

	set := BuildNodes(raw, &corpus.Cleaned{}, NodeOptions{})

	want := []struct {
		typ  NodeType
		key  Key
		text string
	}{
		{TypeTitle, TitleKey("2"), "Administration"},
		{TypeTitle, TitleKey("1"), "General"},
		{TypeChapter, ChapterKey("2", "1"), "First"},
		{TypeChapter, ChapterKey("1", "3"), "Third"},
		{TypeArticle, ArticleKey(4), "Legislature"},
		{TypeArticle, ArticleKey(1), "Bill of Rights"},
	}
	if len(set.Nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(set.Nodes))
	}
	for i, w := range want {
		n := set.Nodes[i]
		if n.ID != int64(i+1) {
			t.Errorf("node %d id = %d, want %d", i, n.ID, i+1)
		}
		if n.NodeType != w.typ || n.Key() != w.key || !n.Synthetic || n.ChunkIdx != 0 {
			t.Errorf("node %d = %+v, want %s %s synthetic", i, n, w.typ, w.key)
		}
		if set.Texts[n.ID] != w.text {
			t.Errorf("node %d text = %q, want %q", i, set.Texts[n.ID], w.text)
		}
	}
	if len(set.ChunkMeta) != 0 {
		t.Errorf("synthetic nodes must not carry chunk metadata, got %d", len(set.ChunkMeta))
	}
}

func TestBuildNodesChunksLongRecords(t *testing.T) {
	body := words("statute.", 60)
	raw := &corpus.Corpus{Authorities: []corpus.AuthorityRecord{
		{ID: 1, ShortName: "DMV", Title: "Department of Motor Vehicles", Body: body},
	}}
	cleaned, _ := corpus.Clean(raw, nil)

	set := BuildNodes(raw, cleaned, NodeOptions{MaxTokens: 20, Overlap: 5, StartID: 100})

	ids := set.Lookup.Get(AuthorityKey("DMV"))
	if len(ids) < 3 {
		t.Fatalf("expected the authority to be chunked, got %d nodes", len(ids))
	}
	if ids[0] != 100 {
		t.Errorf("first id = %d, want StartID 100", ids[0])
	}
	text := cleaned.Authorities[0].Text
	for i, id := range ids {
		n, ok := set.Node(id)
		if !ok {
			t.Fatalf("node %d missing", id)
		}
		if n.ChunkIdx != i {
			t.Errorf("node %d chunk_idx = %d, want %d", id, n.ChunkIdx, i)
		}
		if n.NodeType != TypeAuthority || n.Synthetic {
			t.Errorf("node %d = %+v", id, n)
		}
	}
	for _, m := range set.ChunkMeta {
		if m.CharStart < 0 || m.CharStart > m.CharEnd || m.CharEnd > len(text) {
			t.Errorf("chunk meta %+v outside text of %d bytes", m, len(text))
		}
	}
	if len(set.ChunkMeta) != len(ids) {
		t.Errorf("expected %d chunk meta entries, got %d", len(ids), len(set.ChunkMeta))
	}
}

func TestBuildNodesSharedKeyContinuesChunkIdx(t *testing.T) {
	cleaned := &corpus.Cleaned{PopularNames: []corpus.Record[corpus.PopularNameRecord]{
		{Raw: corpus.PopularNameRecord{ID: 1, Name: "Dillon Rule"}, Text: "Dillon Rule first text"},
		{Raw: corpus.PopularNameRecord{ID: 2, Name: "Dillon Rule"}, Text: "Dillon Rule second text"},
	}}

	set := BuildNodes(&corpus.Corpus{}, cleaned, NodeOptions{})

	if len(set.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(set.Nodes))
	}
	if set.Nodes[0].ChunkIdx != 0 || set.Nodes[1].ChunkIdx != 1 {
		t.Errorf("chunk indices = %d, %d, want 0, 1", set.Nodes[0].ChunkIdx, set.Nodes[1].ChunkIdx)
	}
	if err := Validate(set, nil); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildNodesSkipsUnaddressableAndBlankRecords(t *testing.T) {
	cleaned := &corpus.Cleaned{
		Code: []corpus.Record[corpus.CodeRecord]{
			{Raw: corpus.CodeRecord{Section: ""}, Text: "a section with no number at all"},
			{Raw: corpus.CodeRecord{Section: "1-1"}, Text: "kept section"},
		},
		Documents: []corpus.Record[corpus.DocumentRecord]{
			{Raw: corpus.DocumentRecord{Filename: ""}, Text: "orphan"},
			{Raw: corpus.DocumentRecord{Filename: "blank.md"}, Text: " "},
		},
		Courts: []corpus.Record[corpus.CourtRecord]{
			{Raw: corpus.CourtRecord{ID: 9}, Text: ""},
		},
	}

	set := BuildNodes(&corpus.Corpus{}, cleaned, NodeOptions{})

	if len(set.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(set.Nodes))
	}
	if set.Skipped[SourceCode] != 1 || set.Skipped[SourceDocuments] != 2 || set.Skipped[SourceCourts] != 1 {
		t.Errorf("Skipped = %v", set.Skipped)
	}
}

func TestNodeSetCounts(t *testing.T) {
	raw := &corpus.Corpus{
		Code: []corpus.CodeRecord{
			{TitleNum: "1", TitleName: "General Provisions", ChapterNum: "1", ChapterName: "Enactment",
				Section: "1-1", Title: "Code enacted", Body: "The Code of Virginia is enacted."},
		},
		Courts: []corpus.CourtRecord{{ID: 3, Name: "General District Court", Locality: "Richmond"}},
	}
	set, _ := buildGraph(t, raw, NodeOptions{})

	embeddable, synthetic := set.Counts()
	if embeddable != 2 || synthetic != 2 {
		t.Errorf("Counts() = %d, %d, want 2, 2", embeddable, synthetic)
	}
	if _, ok := set.Node(99); ok {
		t.Error("Node(99) should not exist")
	}
}

func TestIDSequence(t *testing.T) {
	s := NewIDSequence(0)
	if s.Peek() != 1 {
		t.Fatalf("Peek() = %d, want 1", s.Peek())
	}
	for want := int64(1); want <= 3; want++ {
		if got := s.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
}
