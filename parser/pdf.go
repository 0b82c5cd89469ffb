package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer page by page. Lines that look like
// statutory headings ("§ 16.1-69.6", "ARTICLE IV", "1.2 Scope") become
// heading blocks; the lines between them are joined into text blocks.
type PDFParser struct{}

func (p *PDFParser) Extensions() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	doc := &Document{
		Title: strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()),
		Pages: reader.NumPage(),
	}

	for i := 1; i <= doc.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("parser: skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		doc.Blocks = append(doc.Blocks, pageBlocks(text, i)...)
	}
	return doc, nil
}

// pageBlocks splits one page of text at heading lines.
func pageBlocks(text string, page int) []Block {
	var (
		blocks []Block
		body   []string
	)
	flush := func() {
		if len(body) > 0 {
			blocks = append(blocks, Block{Kind: BlockText, Text: strings.Join(body, "\n"), Page: page})
			body = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeadingLine(line) {
			flush()
			blocks = append(blocks, Block{Kind: BlockHeading, Text: line, Page: page})
			continue
		}
		body = append(body, line)
	}
	flush()
	return blocks
}

// headingPrefixes are the lower-cased openers of structural headings in
// statutes, regulations and agency manuals.
var headingPrefixes = []string{"section ", "article ", "chapter ", "title ", "part ", "subpart ", "§ ", "§§ "}

const maxHeadingLen = 120

func isHeadingLine(line string) bool {
	if line == "" || len(line) >= maxHeadingLen {
		return false
	}
	// A heading is a label, not a sentence.
	if strings.HasSuffix(line, ".") && strings.Count(line, " ") > 6 {
		return false
	}
	if isUpperLabel(line) {
		return true
	}
	// "1.", "1.1", "3.9.1 Scope"
	if unicode.IsDigit(rune(line[0])) {
		first, _, _ := strings.Cut(line, " ")
		if strings.Contains(first, ".") && strings.Trim(first, "0123456789.") == "" {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// isUpperLabel reports whether line has at least three letters and none
// of them lower case.
func isUpperLabel(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}
