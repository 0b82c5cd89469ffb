// Package parser turns document files into plain text records for the
// graph and normalises markup found in corpus fields.
package parser

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedFormat is returned by Registry.Get for an unknown file
// extension.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")

// BlockKind classifies a Block.
type BlockKind string

const (
	BlockHeading BlockKind = "heading"
	BlockText    BlockKind = "text"
	BlockTable   BlockKind = "table"
)

// Block is one run of a document in reading order.
type Block struct {
	Kind BlockKind
	Text string
	Page int // 1-based; 0 when the format has no pages
}

// Document is the text extracted from one file.
type Document struct {
	// Title comes from the file's own metadata (PDF info, DOCX core
	// properties, XLSX document properties, HTML <title>, leading markdown
	// heading). Empty when the file does not carry one.
	Title  string
	Blocks []Block
	Pages  int
}

// Text renders the document as one body, blocks separated by blank lines.
func (d *Document) Text() string {
	var b strings.Builder
	for _, blk := range d.Blocks {
		text := strings.TrimSpace(blk.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

// Parser extracts a Document from files of the extensions it lists.
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
	Extensions() []string
}

// tableRow renders cells as one pipe-delimited row.
func tableRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
