package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps lower-case file extensions (without the dot) to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers: pdf, xlsx,
// docx, txt/md and html/htm.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &XLSXParser{}, &DOCXParser{}, &TextParser{}, &HTMLParser{}} {
		for _, f := range p.Extensions() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// ForPath returns the parser for a file's extension.
func (r *Registry) ForPath(path string) (Parser, error) {
	return r.Get(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Formats lists the registered extensions in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
