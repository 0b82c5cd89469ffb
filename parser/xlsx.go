package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser renders each non-empty sheet as a heading followed by a pipe
// table. Fee schedules and court directories arrive in this form.
type XLSXParser struct{}

func (p *XLSXParser) Extensions() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	doc := &Document{}
	if props, err := f.GetDocProps(); err == nil {
		doc.Title = strings.TrimSpace(props.Title)
	}

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := sheetTable(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if table == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks,
			Block{Kind: BlockHeading, Text: sheet},
			Block{Kind: BlockTable, Text: table},
		)
	}
	return doc, nil
}

// sheetTable streams the rows of one sheet, dropping blank rows and
// trailing empty cells.
func sheetTable(f *excelize.File, sheet string) (string, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return "", err
		}
		for len(cols) > 0 && strings.TrimSpace(cols[len(cols)-1]) == "" {
			cols = cols[:len(cols)-1]
		}
		if len(cols) == 0 {
			continue
		}
		lines = append(lines, tableRow(cols))
	}
	if err := rows.Error(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
