package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/net/html"
)

// HTMLParser keeps the raw markup of .html files as the document body.
// Link targets stay intact for citation scanning; the corpus cleaner
// normalises the markup later. The page <title> becomes the title.
type HTMLParser struct{}

func (p *HTMLParser) Extensions() []string { return []string{"html", "htm"} }

func (p *HTMLParser) Parse(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HTML: %w", err)
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Document{
		Title:  pageTitle(root),
		Blocks: []Block{{Kind: BlockText, Text: string(data)}},
	}, nil
}

// pageTitle returns the normalised text of the first <title> element.
func pageTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapse(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := pageTitle(c); t != "" {
			return t
		}
	}
	return ""
}
