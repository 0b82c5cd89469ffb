package graph

import (
	"log/slog"
	"strings"

	"github.com/bbiangul/lexgraph/chunker"
	"github.com/bbiangul/lexgraph/corpus"
)

// NodeOptions controls node construction.
type NodeOptions struct {
	// MaxTokens and Overlap set the chunking policy for content records.
	// Zero values select chunker.DefaultMaxTokens / chunker.DefaultOverlap.
	MaxTokens int
	Overlap   int

	// StartID is the first node id handed out (default 1).
	StartID int64
}

// NodeSet is the output of pass 1.
type NodeSet struct {
	Nodes     []Node
	Lookup    Lookup
	Texts     map[int64]string
	ChunkMeta []ChunkMeta

	// Skipped counts content records dropped for an empty key or empty
	// text, per source.
	Skipped map[Source]int

	// textLen is the byte length of the cleaned text each content node was
	// cut from.
	textLen map[int64]int
}

// Node returns the node with the given id. Ids are dense from the set's
// first id, so this is a slice index.
func (s *NodeSet) Node(id int64) (Node, bool) {
	if len(s.Nodes) == 0 {
		return Node{}, false
	}
	i := id - s.Nodes[0].ID
	if i < 0 || i >= int64(len(s.Nodes)) {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Counts returns the number of embeddable and synthetic nodes.
func (s *NodeSet) Counts() (embeddable, synthetic int) {
	for _, n := range s.Nodes {
		if n.Synthetic {
			synthetic++
		}
	}
	return len(s.Nodes) - synthetic, synthetic
}

type nodeBuilder struct {
	set     *NodeSet
	ids     *IDSequence
	chunker *chunker.Chunker
}

// BuildNodes runs pass 1. Synthetic ancestors (statute titles and
// chapters, constitutional articles) are taken from every raw record,
// deduplicated by key with the first-seen name kept, and emitted in
// first-seen order. Content nodes come from the cleaned records and are
// chunked; each chunk becomes one node.
//
// Records with an empty structural key or empty text are skipped and
// counted, never fatal.
func BuildNodes(raw *corpus.Corpus, cleaned *corpus.Cleaned, opts NodeOptions) *NodeSet {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = chunker.DefaultMaxTokens
		if opts.Overlap == 0 {
			opts.Overlap = chunker.DefaultOverlap
		}
	}

	b := &nodeBuilder{
		set: &NodeSet{
			Lookup:  make(Lookup),
			Texts:   make(map[int64]string),
			Skipped: make(map[Source]int),
			textLen: make(map[int64]int),
		},
		ids:     NewIDSequence(opts.StartID),
		chunker: chunker.New(chunker.Config{MaxTokens: opts.MaxTokens, Overlap: opts.Overlap}),
	}

	b.ancestors(raw)

	for _, r := range cleaned.Code {
		b.content(SourceCode, r.Raw.Section, SectionKey(r.Raw.Section), TypeSection, r.Text)
	}
	for _, r := range cleaned.Constitution {
		key := ConstitutionSectionKey(r.Raw.ArticleID, r.Raw.SectionCount)
		b.content(SourceConstitution, key.ID, key, TypeConstitutionSection, r.Text)
	}
	for _, r := range cleaned.Authorities {
		b.content(SourceAuthorities, r.Raw.ShortName, AuthorityKey(r.Raw.ShortName), TypeAuthority, r.Text)
	}
	for _, r := range cleaned.Courts {
		key := CourtKey(r.Raw.ID)
		b.content(SourceCourts, key.ID, key, TypeCourt, r.Text)
	}
	for _, r := range cleaned.PopularNames {
		b.content(SourcePopularNames, r.Raw.Name, PopularNameKey(r.Raw.Name), TypePopularName, r.Text)
	}
	for _, r := range cleaned.Documents {
		b.content(SourceDocuments, r.Raw.Filename, DocumentKey(r.Raw.Filename), TypeDocumentChunk, r.Text)
	}

	embeddable, synthetic := b.set.Counts()
	slog.Info("graph: built nodes",
		"total", len(b.set.Nodes),
		"embeddable", embeddable,
		"synthetic", synthetic,
		"keys", len(b.set.Lookup),
	)
	for src, n := range b.set.Skipped {
		slog.Info("graph: skipped records", "source", src, "count", n)
	}
	return b.set
}

// ancestors emits the synthetic grouping nodes.
func (b *nodeBuilder) ancestors(raw *corpus.Corpus) {
	type ancestor struct {
		key  Key
		name string
	}
	var titles, chapters, articles []ancestor
	seen := make(map[Key]struct{})
	add := func(list *[]ancestor, key Key, name string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		*list = append(*list, ancestor{key, name})
	}

	for _, r := range raw.Code {
		if r.TitleNum != "" {
			add(&titles, TitleKey(r.TitleNum), r.TitleName)
		}
		if r.ChapterNum != "" {
			add(&chapters, ChapterKey(r.TitleNum, r.ChapterNum), r.ChapterName)
		}
	}
	for _, r := range raw.Constitution {
		add(&articles, ArticleKey(r.ArticleID), r.ArticleName)
	}

	for _, a := range titles {
		b.synthetic(a.key, TypeTitle, a.name)
	}
	for _, a := range chapters {
		b.synthetic(a.key, TypeChapter, a.name)
	}
	for _, a := range articles {
		b.synthetic(a.key, TypeArticle, a.name)
	}
}

func (b *nodeBuilder) synthetic(key Key, typ NodeType, name string) {
	id := b.ids.Next()
	idx := b.set.Lookup.Add(key, id)
	b.set.Nodes = append(b.set.Nodes, Node{
		ID:        id,
		Source:    key.Source,
		SourceID:  key.ID,
		ChunkIdx:  idx,
		NodeType:  typ,
		Synthetic: true,
	})
	b.set.Texts[id] = name
}

// content chunks text and emits one node per chunk. primary is the raw
// value the key was derived from; an empty one means the record cannot be
// addressed. Blank text is skipped like an empty key. When several records share a key, chunk indices continue
// from the nodes already registered under it.
func (b *nodeBuilder) content(src Source, primary string, key Key, typ NodeType, text string) {
	if primary == "" || strings.TrimSpace(text) == "" {
		b.set.Skipped[src]++
		return
	}
	spans := b.chunker.Chunk(text)
	if len(spans) == 0 {
		b.set.Skipped[src]++
		return
	}

	for _, sp := range spans {
		id := b.ids.Next()
		idx := b.set.Lookup.Add(key, id)
		b.set.Nodes = append(b.set.Nodes, Node{
			ID:       id,
			Source:   key.Source,
			SourceID: key.ID,
			ChunkIdx: idx,
			NodeType: typ,
		})
		b.set.Texts[id] = sp.Text
		b.set.ChunkMeta = append(b.set.ChunkMeta, ChunkMeta{
			NodeID:    id,
			CharStart: sp.CharStart,
			CharEnd:   sp.CharEnd,
		})
		b.set.textLen[id] = len(text)
	}
}
