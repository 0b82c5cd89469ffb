// Package citation finds structural cross-references (statute section
// numbers) in legal text.
//
// Extraction is best-effort: each Pattern recognises one citation syntax
// and fragments it cannot parse are ignored. Results from all patterns are
// unioned, deduplicated and sorted so callers get the same output for the
// same input on every run.
package citation

import (
	"regexp"
	"slices"
	"strings"
)

// Pattern recognises one family of citation syntax.
type Pattern interface {
	// Name identifies the pattern family in logs and metrics.
	Name() string
	// Find returns every candidate key in text, in any order.
	Find(text string) []string
}

// PatternFunc adapts a plain function to the Pattern interface.
type PatternFunc struct {
	name string
	fn   func(string) []string
}

// NewPattern wraps fn as a Pattern called name.
func NewPattern(name string, fn func(string) []string) Pattern {
	return PatternFunc{name: name, fn: fn}
}

func (p PatternFunc) Name() string              { return p.name }
func (p PatternFunc) Find(text string) []string { return p.fn(text) }

// ---------------------------------------------------------------------------
// Built-in patterns
// ---------------------------------------------------------------------------

var (
	// hrefPattern matches link targets under a /vacode/ path, e.g.
	// href="https://law.lis.virginia.gov/vacode/19.2-392".
	hrefPattern = regexp.MustCompile(`href.*?/vacode/([^'"\s<>?#]+)`)

	// sectionPattern matches a single-section mark: "§ 46.2-852".
	sectionPattern = regexp.MustCompile(`§\s*(\d+(?:\.\d+)*-\d+(?:\.\d+)*)`)

	// sectionListPattern matches a plural mark and its list:
	// "§§ 1-200, 1-201 and 1-202".
	sectionListPattern = regexp.MustCompile(`§§\s*([\d.,\s\-and]+)`)

	// sectionNumber is one numeric-dotted section identifier.
	sectionNumber = regexp.MustCompile(`\d+(?:\.\d+)*-\d+(?:\.\d+)*`)
)

// Href extracts the trailing path segment of /vacode/ link targets.
var Href = NewPattern("href", func(text string) []string {
	var out []string
	for _, m := range hrefPattern.FindAllStringSubmatch(text, -1) {
		if seg := lastSegment(m[1]); seg != "" {
			out = append(out, seg)
		}
	}
	return out
})

// Section extracts identifiers following a single section mark.
var Section = NewPattern("section", func(text string) []string {
	var out []string
	for _, m := range sectionPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
})

// SectionList extracts every identifier inside a plural section list.
var SectionList = NewPattern("section_list", func(text string) []string {
	var out []string
	for _, m := range sectionListPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, sectionNumber.FindAllString(m[1], -1)...)
	}
	return out
})

func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor runs a fixed set of patterns over text. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	patterns []Pattern
}

// New returns an Extractor over patterns. With no patterns it uses the
// built-in set.
func New(patterns ...Pattern) *Extractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Extractor{patterns: patterns}
}

// DefaultPatterns returns the built-in pattern families.
func DefaultPatterns() []Pattern {
	return []Pattern{Href, Section, SectionList}
}

// Patterns returns the extractor's patterns in evaluation order.
func (e *Extractor) Patterns() []Pattern {
	return slices.Clone(e.patterns)
}

// Extract returns the distinct keys cited in text, sorted.
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}
	var refs []string
	for _, p := range e.patterns {
		refs = append(refs, p.Find(text)...)
	}
	slices.Sort(refs)
	return slices.Compact(refs)
}

var defaultExtractor = New()

// Extract runs the built-in patterns over text.
func Extract(text string) []string {
	return defaultExtractor.Extract(text)
}
