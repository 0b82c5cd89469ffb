package corpus

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Normalizer turns markup into plain text. It must be total.
type Normalizer func(string) string

// Record pairs a raw record with the cleaned text built from it.
type Record[T any] struct {
	Raw  T
	Text string
}

// Cleaned holds the records that survived cleaning, in input order.
type Cleaned struct {
	Code         []Record[CodeRecord]
	Constitution []Record[ConstitutionRecord]
	Authorities  []Record[AuthorityRecord]
	Courts       []Record[CourtRecord]
	PopularNames []Record[PopularNameRecord]
	Documents    []Record[DocumentRecord]
}

// CleanStats counts records dropped per table, keyed by table name.
type CleanStats map[string]int

// Total returns the number of dropped records across all tables.
func (s CleanStats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Minimum cleaned-text lengths, in characters.
const (
	minCodeText      = 20
	minAuthorityText = 10
	minNameText      = 10
)

// Clean builds the cleaned text of every record and drops records that
// cannot be addressed or carry no usable text:
//
//   - code sections need a section number and more than 20 characters of
//     text; identical texts are kept once (first wins)
//   - constitution sections need section text
//   - authorities need a short name and more than 10 characters
//   - popular names need a name and more than 10 characters
//   - documents need a filename
//
// Courts are always kept. A nil norm falls back to whitespace collapsing.
func Clean(c *Corpus, norm Normalizer) (*Cleaned, CleanStats) {
	if norm == nil {
		norm = collapseSpace
	}
	out := &Cleaned{}
	stats := CleanStats{}

	seen := make(map[string]struct{}, len(c.Code))
	for _, r := range c.Code {
		text := r.TitleName + " | " + r.ChapterName + " | " + norm(r.Title) + " " + norm(r.Body)
		if r.Section == "" || utf8.RuneCountInString(text) <= minCodeText {
			stats[TableCode]++
			continue
		}
		if _, dup := seen[text]; dup {
			stats[TableCode]++
			continue
		}
		seen[text] = struct{}{}
		out.Code = append(out.Code, Record[CodeRecord]{Raw: r, Text: text})
	}

	for _, r := range c.Constitution {
		body := norm(r.SectionText)
		if body == "" {
			stats[TableConstitution]++
			continue
		}
		text := r.ArticleName + " | " + norm(r.SectionName) + " " + norm(r.SectionTitle) + " " + body
		out.Constitution = append(out.Constitution, Record[ConstitutionRecord]{Raw: r, Text: text})
	}

	for _, r := range c.Authorities {
		text := norm(r.Title) + " " + norm(r.Body)
		if r.ShortName == "" || utf8.RuneCountInString(text) <= minAuthorityText {
			stats[TableAuthorities]++
			continue
		}
		out.Authorities = append(out.Authorities, Record[AuthorityRecord]{Raw: r, Text: text})
	}

	for _, r := range c.Courts {
		text := norm(strings.Join([]string{r.Name, r.Locality, r.CourtType, r.District, r.City}, " "))
		out.Courts = append(out.Courts, Record[CourtRecord]{Raw: r, Text: text})
	}

	for _, r := range c.PopularNames {
		text := r.Name + " " + norm(r.Body)
		if r.Name == "" || utf8.RuneCountInString(text) <= minNameText {
			stats[TablePopularNames]++
			continue
		}
		out.PopularNames = append(out.PopularNames, Record[PopularNameRecord]{Raw: r, Text: text})
	}

	for _, r := range c.Documents {
		if r.Filename == "" {
			stats[TableDocuments]++
			continue
		}
		text := norm(r.Title) + " " + norm(r.Content)
		out.Documents = append(out.Documents, Record[DocumentRecord]{Raw: r, Text: text})
	}

	for table, n := range stats {
		slog.Info("corpus: dropped records", "table", table, "count", n)
	}
	return out, stats
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
