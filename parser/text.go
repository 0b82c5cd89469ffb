package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextParser reads plain text and markdown. A markdown file's first
// top-level heading becomes the title.
type TextParser struct{}

func (p *TextParser) Extensions() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: not valid UTF-8", filepath.Base(path))
	}

	doc := &Document{}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".md") {
		doc.Title = markdownTitle(text)
	}
	doc.Blocks = []Block{{Kind: BlockText, Text: text}}
	return doc, nil
}

func markdownTitle(text string) string {
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
