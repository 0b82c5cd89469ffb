// Package graph builds the legal knowledge graph: typed nodes for every
// citable unit or text chunk, and typed edges for containment and
// citation.
//
// Construction runs in two passes. BuildNodes assigns identities, chunks
// content and fills the Lookup index; BuildEdges reads the finished
// NodeSet and never mutates it. Validate checks the result before it is
// persisted.
package graph

import (
	"fmt"
	"strconv"
)

// Source tags the table a node was built from.
type Source string

const (
	SourceCode         Source = "virginia_code"
	SourceConstitution Source = "constitution"
	SourceAuthorities  Source = "authorities"
	SourceCourts       Source = "courts"
	SourcePopularNames Source = "popular_names"
	SourceDocuments    Source = "documents"
)

// NodeType is the structural kind of a node. One source can produce
// several kinds (a statute has titles, chapters and sections).
type NodeType string

const (
	TypeTitle               NodeType = "title"
	TypeChapter             NodeType = "chapter"
	TypeSection             NodeType = "section"
	TypeArticle             NodeType = "article"
	TypeConstitutionSection NodeType = "constitution_section"
	TypeAuthority           NodeType = "authority"
	TypeCourt               NodeType = "court"
	TypePopularName         NodeType = "popular_name"
	TypeDocumentChunk       NodeType = "document_chunk"
)

// Citable reports whether nodes of this type are scanned for citations.
func (t NodeType) Citable() bool {
	switch t {
	case TypeSection, TypeConstitutionSection, TypeAuthority, TypePopularName:
		return true
	}
	return false
}

// RelType is the kind of an edge.
type RelType string

const (
	RelContains   RelType = "contains"
	RelCites      RelType = "cites"
	RelReferences RelType = "references"
)

// RelTypes lists every edge kind in sort order.
var RelTypes = []RelType{RelCites, RelContains, RelReferences}

// Node is one vertex of the graph. (Source, SourceID, ChunkIdx) is unique.
type Node struct {
	ID        int64    `json:"id"`
	Source    Source   `json:"source"`
	SourceID  string   `json:"source_id"`
	ChunkIdx  int      `json:"chunk_idx"`
	NodeType  NodeType `json:"node_type"`
	Synthetic bool     `json:"synthetic"`
}

// Key returns the node's structural key.
func (n Node) Key() Key { return Key{Source: n.Source, ID: n.SourceID} }

// Edge is a directed, typed relationship. Weight is unset for every edge
// kind the builder currently produces.
type Edge struct {
	FromID  int64    `json:"from_id"`
	ToID    int64    `json:"to_id"`
	RelType RelType  `json:"rel_type"`
	Weight  *float64 `json:"weight,omitempty"`
}

// ChunkMeta ties a content node to the byte range of the cleaned text it
// was cut from.
type ChunkMeta struct {
	NodeID    int64 `json:"node_id"`
	CharStart int   `json:"char_start"`
	CharEnd   int   `json:"char_end"`
}

// Key is the composite structural key of a node: its source table and its
// natural identifier within that table.
type Key struct {
	Source Source
	ID     string
}

func (k Key) String() string { return string(k.Source) + "/" + k.ID }

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Lookup maps a structural key to the ids of every node registered under
// it, in registration (chunk) order. It is one-to-many: a chunked record
// has one id per chunk.
type Lookup map[Key][]int64

// Add appends id under k and returns its position in the key's list.
func (l Lookup) Add(k Key, id int64) int {
	l[k] = append(l[k], id)
	return len(l[k]) - 1
}

// Get returns the ids registered under k. Callers must not modify the
// returned slice.
func (l Lookup) Get(k Key) []int64 { return l[k] }

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// IDSequence hands out monotonically increasing node ids. It is owned by a
// single BuildNodes call and is not safe for concurrent use.
type IDSequence struct {
	next int64
}

// NewIDSequence returns a sequence whose first id is start (1 if start < 1).
func NewIDSequence(start int64) *IDSequence {
	if start < 1 {
		start = 1
	}
	return &IDSequence{next: start}
}

// Next returns a fresh id.
func (s *IDSequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// Peek returns the id Next would return without consuming it.
func (s *IDSequence) Peek() int64 { return s.next }

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// TitleKey is the key of a statute title.
func TitleKey(titleNum string) Key { return Key{SourceCode, titleNum} }

// ChapterKey is the key of a statute chapter, "title:chapter".
func ChapterKey(titleNum, chapterNum string) Key {
	return Key{SourceCode, titleNum + ":" + chapterNum}
}

// SectionKey is the key of a statute section. Citations resolve against it.
func SectionKey(section string) Key { return Key{SourceCode, section} }

// ArticleKey is the key of a constitutional article, "article:N".
func ArticleKey(articleID int64) Key {
	return Key{SourceConstitution, "article:" + strconv.FormatInt(articleID, 10)}
}

// ConstitutionSectionKey is the key of a constitutional section,
// "article:count".
func ConstitutionSectionKey(articleID, sectionCount int64) Key {
	return Key{SourceConstitution, fmt.Sprintf("%d:%d", articleID, sectionCount)}
}

func AuthorityKey(shortName string) Key { return Key{SourceAuthorities, shortName} }
func CourtKey(id int64) Key              { return Key{SourceCourts, strconv.FormatInt(id, 10)} }
func PopularNameKey(name string) Key     { return Key{SourcePopularNames, name} }
func DocumentKey(filename string) Key    { return Key{SourceDocuments, filename} }
