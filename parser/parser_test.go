package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		ext  string
		want string
	}{
		{"pdf", "*parser.PDFParser"},
		{"docx", "*parser.DOCXParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"txt", "*parser.TextParser"},
		{"md", "*parser.TextParser"},
		{"html", "*parser.HTMLParser"},
		{"HTM", "*parser.HTMLParser"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			p, err := reg.Get(tt.ext)
			if err != nil {
				t.Fatalf("Get(%q): %v", tt.ext, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.want {
				t.Errorf("Get(%q) = %s, want %s", tt.ext, got, tt.want)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, ext := range []string{"csv", "json", "rtf", "pptx", ""} {
		p, err := reg.Get(ext)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Get(%q) error = %v, want ErrUnsupportedFormat", ext, err)
		}
		if p != nil {
			t.Errorf("Get(%q) returned a parser", ext)
		}
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	reg.Register("rst", &TextParser{})

	if _, err := reg.ForPath("/tmp/notes.RST"); err != nil {
		t.Fatalf("ForPath after Register: %v", err)
	}
	if !strings.Contains(strings.Join(reg.Formats(), ","), "rst") {
		t.Errorf("Formats() = %v, missing rst", reg.Formats())
	}
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

func TestDocumentText(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Kind: BlockHeading, Text: "Chapter 1"},
		{Kind: BlockText, Text: "  First body.  "},
		{Kind: BlockTable, Text: "| a | b |"},
		{Kind: BlockText, Text: "  "},
	}}
	want := "Chapter 1\n\nFirst body.\n\n| a | b |"
	if got := doc.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// PDF page layout
// ---------------------------------------------------------------------------

func TestPageBlocks(t *testing.T) {
	text := `CIVIL PROCEDURE
The clerk dockets each warrant.
Fees are collected at filing.

§ 16.1-69.6 District courts
Each district court has a clerk.`

	blocks := pageBlocks(text, 3)

	want := []Block{
		{Kind: BlockHeading, Text: "CIVIL PROCEDURE", Page: 3},
		{Kind: BlockText, Text: "The clerk dockets each warrant.\nFees are collected at filing.", Page: 3},
		{Kind: BlockHeading, Text: "§ 16.1-69.6 District courts", Page: 3},
		{Kind: BlockText, Text: "Each district court has a clerk.", Page: 3},
	}
	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(want), blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestPageBlocksBlank(t *testing.T) {
	if blocks := pageBlocks("   \n\n  ", 1); len(blocks) != 0 {
		t.Errorf("expected no blocks for blank text, got %+v", blocks)
	}
}

func TestIsHeadingLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"INTRODUCTION", true},
		{"ARTICLE IV", true},
		{"AB", false},
		{"2024", false},
		{"1.1 Scope", true},
		{"3. Overview", true},
		{"1.5 million dollars were appropriated for the year.", false},
		{"Section 5 General", true},
		{"§ 16.1-69.6 District courts", true},
		{"§§ 2.2-3700 through 2.2-3714", true},
		{"Title 46.2 Motor Vehicles", true},
		{"This is a regular sentence.", false},
		{strings.Repeat("A", maxHeadingLen), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isHeadingLine(tt.line); got != tt.want {
			t.Errorf("isHeadingLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// DOCX
// ---------------------------------------------------------------------------

func TestDocxBlocksKeepsDocumentOrder(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Fee Schedule</w:t></w:r></w:p>
<w:tbl>
  <w:tr><w:tc><w:p><w:r><w:t>Court</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Fee</w:t></w:r></w:p></w:tc></w:tr>
  <w:tr><w:tc><w:p><w:r><w:t>Richmond</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>52</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t xml:space="preserve">See </w:t></w:r><w:r><w:tab/><w:t>§ 17.1-275.</w:t></w:r></w:p>
<w:p></w:p>
</w:body></w:document>`

	blocks, err := docxBlocks(context.Background(), strings.NewReader(xml))
	if err != nil {
		t.Fatalf("docxBlocks: %v", err)
	}
	want := []Block{
		{Kind: BlockHeading, Text: "Fee Schedule"},
		{Kind: BlockTable, Text: "| Court | Fee |\n| Richmond | 52 |"},
		{Kind: BlockText, Text: "See  § 17.1-275."},
	}
	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(want), blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestDocxBlocksMalformed(t *testing.T) {
	if _, err := docxBlocks(context.Background(), strings.NewReader("<w:document><w:body>")); err == nil {
		t.Error("expected an error for truncated XML")
	}
}

func TestDocxTitle(t *testing.T) {
	core := `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title> Magistrate Manual </dc:title></cp:coreProperties>`
	if got := docxTitle(strings.NewReader(core)); got != "Magistrate Manual" {
		t.Errorf("docxTitle = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Text
// ---------------------------------------------------------------------------

func TestTextParserMarkdownTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, "\xef\xbb\xbfIntro line\n\n#  Bench Guide \n\n## Scope\nBody.")

	doc, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title != "Bench Guide" {
		t.Errorf("Title = %q", doc.Title)
	}
	if strings.HasPrefix(doc.Text(), "\xef\xbb\xbf") {
		t.Error("byte order mark should be stripped")
	}
}

func TestTextParserInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.txt")
	if err := os.WriteFile(path, []byte{'c', 'a', 'f', 0xe9}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&TextParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected an error for invalid UTF-8")
	}
}

func TestTextParserEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, path, " \n ")
	doc, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("expected no blocks, got %+v", doc.Blocks)
	}
}
