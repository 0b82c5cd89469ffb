package graph

import "github.com/bbiangul/lexgraph/corpus"

// Relation is a parent/child pair of structural keys carried by one raw
// record. Statute titles and sections share a key namespace, so the node
// types pick which nodes under each key take part.
type Relation struct {
	Parent     Key
	ParentType NodeType
	Child      Key
	ChildType  NodeType
}

// CodeRelations returns the containment pairs of a statute record:
// title→chapter and chapter→section. A section with no chapter hangs
// directly off its title.
func CodeRelations(r corpus.CodeRecord) []Relation {
	var rels []Relation
	hasTitle, hasChapter := r.TitleNum != "", r.ChapterNum != ""

	if hasTitle && hasChapter {
		rels = append(rels, Relation{TitleKey(r.TitleNum), TypeTitle, ChapterKey(r.TitleNum, r.ChapterNum), TypeChapter})
	}
	if r.Section == "" {
		return rels
	}
	switch {
	case hasChapter:
		rels = append(rels, Relation{ChapterKey(r.TitleNum, r.ChapterNum), TypeChapter, SectionKey(r.Section), TypeSection})
	case hasTitle:
		rels = append(rels, Relation{TitleKey(r.TitleNum), TypeTitle, SectionKey(r.Section), TypeSection})
	}
	return rels
}

// ConstitutionRelations returns the article→section pair of a
// constitutional record.
func ConstitutionRelations(r corpus.ConstitutionRecord) []Relation {
	return []Relation{{
		ArticleKey(r.ArticleID), TypeArticle,
		ConstitutionSectionKey(r.ArticleID, r.SectionCount), TypeConstitutionSection,
	}}
}
