package parser

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bbiangul/lexgraph/corpus"
)

const defaultLoadConcurrency = 4

// LoadDir parses every supported file below dir with the built-in
// registry. See Registry.LoadDir.
func LoadDir(ctx context.Context, dir, dataset string, concurrency int) ([]corpus.DocumentRecord, error) {
	return NewRegistry().LoadDir(ctx, dir, dataset, concurrency)
}

// LoadDir parses every file below dir whose extension has a registered
// parser and returns one document record per file, ordered by filename.
// Filenames are slash-separated paths relative to dir. Files that fail to
// parse are logged and skipped; only a missing dir or a cancelled ctx is
// an error.
func (r *Registry) LoadDir(ctx context.Context, dir, dataset string, concurrency int) ([]corpus.DocumentRecord, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("parser.LoadDir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("parser.LoadDir: %s is not a directory", dir)
	}
	if concurrency <= 0 {
		concurrency = defaultLoadConcurrency
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, perr := r.ForPath(path); perr == nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parser.LoadDir: walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	results := make([]*corpus.DocumentRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := r.loadFile(gctx, dir, path, dataset)
			if err != nil {
				slog.Warn("parser: skipping document", "path", path, "error", err)
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parser.LoadDir: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parser.LoadDir: %w", err)
	}

	docs := make([]corpus.DocumentRecord, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			docs = append(docs, *rec)
		}
	}
	slog.Info("parser: loaded documents", "dir", dir, "files", len(paths), "documents", len(docs))
	return docs, nil
}

func (r *Registry) loadFile(ctx context.Context, dir, path, dataset string) (*corpus.DocumentRecord, error) {
	p, err := r.ForPath(path)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(ctx, path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &corpus.DocumentRecord{
		Dataset:  dataset,
		Filename: filepath.ToSlash(rel),
		Title:    title,
		Content:  doc.Text(),
	}, nil
}
