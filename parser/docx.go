package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart = "word/document.xml"
	docxCorePart = "docProps/core.xml"
)

// DOCXParser walks word/document.xml in document order. Paragraphs styled
// Title or Heading* become heading blocks, other paragraphs text blocks,
// and tables pipe tables. The title comes from docProps/core.xml.
type DOCXParser struct{}

func (p *DOCXParser) Extensions() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*Document, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	body, err := r.Open(docxBodyPart)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", docxBodyPart, err)
	}
	defer body.Close()

	doc := &Document{}
	if doc.Blocks, err = docxBlocks(ctx, body); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", docxBodyPart, err)
	}
	if core, err := r.Open(docxCorePart); err == nil {
		doc.Title = docxTitle(core)
		core.Close()
	}
	return doc, nil
}

type docxWalker struct {
	blocks []Block

	para    strings.Builder
	heading bool
	inText  bool

	tableDepth int
	rows       []string
	cells      []string
	cell       []string
}

// docxBlocks streams WordprocessingML tokens. Only the w:p, w:pStyle, w:t,
// w:tab, w:br, w:tbl, w:tr and w:tc elements matter; everything else is
// skipped.
func docxBlocks(ctx context.Context, r io.Reader) ([]Block, error) {
	dec := xml.NewDecoder(r)
	w := &docxWalker{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return w.blocks, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.para.Write(t)
			}
		}
	}
}

func (w *docxWalker) start(t xml.StartElement) {
	switch t.Name.Local {
	case "p":
		w.para.Reset()
		w.heading = false
	case "pStyle":
		style := strings.ToLower(attr(t, "val"))
		w.heading = strings.HasPrefix(style, "heading") || strings.HasPrefix(style, "title")
	case "t":
		w.inText = true
	case "tab":
		w.para.WriteByte(' ')
	case "br":
		w.para.WriteByte('\n')
	case "tbl":
		w.tableDepth++
		if w.tableDepth == 1 {
			w.rows = nil
		}
	case "tr":
		if w.tableDepth == 1 {
			w.cells = nil
		}
	case "tc":
		if w.tableDepth == 1 {
			w.cell = nil
		}
	}
}

func (w *docxWalker) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		w.inText = false
	case "p":
		text := strings.TrimSpace(w.para.String())
		switch {
		case text == "":
		case w.tableDepth > 0:
			w.cell = append(w.cell, text)
		case w.heading:
			w.blocks = append(w.blocks, Block{Kind: BlockHeading, Text: text})
		default:
			w.blocks = append(w.blocks, Block{Kind: BlockText, Text: text})
		}
	case "tc":
		// Nested tables flatten into the enclosing cell.
		if w.tableDepth == 1 {
			w.cells = append(w.cells, strings.Join(w.cell, " "))
		}
	case "tr":
		if w.tableDepth == 1 {
			w.rows = append(w.rows, tableRow(w.cells))
		}
	case "tbl":
		w.tableDepth--
		if w.tableDepth == 0 && len(w.rows) > 0 {
			w.blocks = append(w.blocks, Block{Kind: BlockTable, Text: strings.Join(w.rows, "\n")})
		}
	}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// docxTitle reads dc:title from the core properties part.
func docxTitle(r io.Reader) string {
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.NewDecoder(r).Decode(&core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
