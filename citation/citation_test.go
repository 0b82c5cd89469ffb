package citation

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLiteralCases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "singular marks",
			in:   "See § 1-200 and § 2.2-3700 for details.",
			want: []string{"1-200", "2.2-3700"},
		},
		{
			name: "plural list",
			in:   "§§ 1-200, 1-201 and 1-202",
			want: []string{"1-200", "1-201", "1-202"},
		},
		{
			name: "hyperlink",
			in:   `<a href="https://law.lis.virginia.gov/vacode/19.2-392">link</a>`,
			want: []string{"19.2-392"},
		},
		{
			name: "no space after mark",
			in:   "under §46.2-852 of the Code",
			want: []string{"46.2-852"},
		},
		{
			name: "nothing to find",
			in:   "A plain sentence with 12 numbers and a - hyphen.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in))
		})
	}
}

func TestExtractDedupAndOrder(t *testing.T) {
	text := `§ 2.2-3700 again § 1-200, and §§ 2.2-3700 and 1-200; <a href='/vacode/1-200/'>x</a>`
	got := Extract(text)
	assert.Equal(t, []string{"1-200", "2.2-3700"}, got)
}

func TestExtractIgnoresMalformed(t *testing.T) {
	got := Extract("§ abc, §§ , § 12 and href=/vacode/")
	assert.Empty(t, got)
}

func TestHrefTakesTrailingSegment(t *testing.T) {
	got := Href.Find(`<a href="https://law.lis.virginia.gov/vacode/title46.2/chapter8/section46.2-852/">s</a>`)
	require.Len(t, got, 1)
	assert.Equal(t, "section46.2-852", got[0])
}

func TestSectionListKeepsDottedIdentifiers(t *testing.T) {
	got := SectionList.Find("§§ 58.1-3200 through 58.1-3389")
	// "through" ends the list; only the first identifier is inside it.
	assert.Equal(t, []string{"58.1-3200"}, got)
}

func TestCustomPattern(t *testing.T) {
	article := NewPattern("article", func(text string) []string {
		if strings.Contains(text, "Article I") {
			return []string{"article:1"}
		}
		return nil
	})
	e := New(article, Section)

	assert.Equal(t, []string{"1-200", "article:1"}, e.Extract("Article I, see § 1-200."))
	require.Len(t, e.Patterns(), 2)
	assert.Equal(t, "article", e.Patterns()[0].Name())
}

func TestDefaultPatterns(t *testing.T) {
	names := make([]string, 0, 3)
	for _, p := range New().Patterns() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"href", "section", "section_list"}, names)
}

func TestExtractConcurrentDeterministic(t *testing.T) {
	text := "§§ 1-3, 1-2 and 1-1. See § 9-9 and § 1-2."
	want := Extract(text)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Extract(text))
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"1-1", "1-2", "1-3", "9-9"}, want)
}
