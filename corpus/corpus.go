// Package corpus holds the raw legal-corpus records and the cleaning pass
// that turns them into graph-ready text.
package corpus

// CodeRecord is one row of the statute table.
type CodeRecord struct {
	ID          int64  `json:"id"`
	TitleNum    string `json:"title_num"`
	TitleName   string `json:"title_name"`
	ChapterNum  string `json:"chapter_num"`
	ChapterName string `json:"chapter_name"`
	Section     string `json:"section"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// ConstitutionRecord is one section of a constitutional article.
type ConstitutionRecord struct {
	ID           int64  `json:"id"`
	ArticleID    int64  `json:"article_id"`
	Article      string `json:"article"`
	ArticleName  string `json:"article_name"`
	SectionName  string `json:"section_name"`
	SectionTitle string `json:"section_title"`
	SectionText  string `json:"section_text"`
	SectionCount int64  `json:"section_count"`
}

// AuthorityRecord is an administrative authority.
type AuthorityRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Codified  string `json:"codified"`
	Title     string `json:"title"`
	Section   string `json:"section"`
	Body      string `json:"body"`
}

// CourtRecord is a court directory entry.
type CourtRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Locality  string `json:"locality"`
	CourtType string `json:"type"`
	District  string `json:"district"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

// PopularNameRecord maps a named act to the sections it covers.
type PopularNameRecord struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TitleNum string `json:"title_num"`
	Section  string `json:"section"`
	Body     string `json:"body"`
}

// DocumentRecord is a free-form document. Content may contain markup.
type DocumentRecord struct {
	ID       int64  `json:"id"`
	Dataset  string `json:"dataset"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// Corpus is every raw record of one pipeline run.
type Corpus struct {
	Code         []CodeRecord
	Constitution []ConstitutionRecord
	Authorities  []AuthorityRecord
	Courts       []CourtRecord
	PopularNames []PopularNameRecord
	Documents    []DocumentRecord
}

// Counts returns the number of records per table.
func (c *Corpus) Counts() map[string]int {
	return map[string]int{
		TableCode:         len(c.Code),
		TableConstitution: len(c.Constitution),
		TableAuthorities:  len(c.Authorities),
		TableCourts:       len(c.Courts),
		TablePopularNames: len(c.PopularNames),
		TableDocuments:    len(c.Documents),
	}
}

// Table names in the input database. They double as the source tags of
// the nodes built from each table.
const (
	TableCode         = "virginia_code"
	TableConstitution = "constitution"
	TableAuthorities  = "authorities"
	TableCourts       = "courts"
	TablePopularNames = "popular_names"
	TableDocuments    = "documents"
)
