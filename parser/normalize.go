package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// Normalize converts markup to plain text. Input without a '<' only has
// its whitespace collapsed. Anything else is parsed as HTML; text nodes
// outside script and style elements are joined with spaces, entities are
// decoded and whitespace is collapsed. Normalize never fails: the HTML
// tokenizer accepts any input.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		return collapse(raw)
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}
	return collapse(textContent(doc))
}

// textContent concatenates the text below n, one space between nodes.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
