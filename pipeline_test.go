//go:build cgo

package lexgraph

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/graph"
	"github.com/bbiangul/lexgraph/store"
)

func writeCorpusDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "virginia.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE virginia_code (id INTEGER PRIMARY KEY, title_num TEXT, title_name TEXT,
			chapter_num TEXT, chapter_name TEXT, section TEXT, title TEXT, body TEXT);
		CREATE TABLE constitution (id INTEGER PRIMARY KEY, article_id INTEGER, article TEXT,
			article_name TEXT, section_name TEXT, section_title TEXT, section_text TEXT, section_count INTEGER);
		CREATE TABLE documents (id INTEGER PRIMARY KEY, dataset TEXT, filename TEXT, title TEXT, content TEXT);

		INSERT INTO virginia_code VALUES (1, '2.2', 'Administration of Government', '37',
			'Virginia Freedom of Information Act', '2.2-3700', 'Short title; policy',
			'<p>This chapter may be cited as the Virginia Freedom of Information Act. See § 2.2-3704.</p>');
		INSERT INTO virginia_code VALUES (2, '2.2', 'Administration of Government', '37',
			'Virginia Freedom of Information Act', '2.2-3704', 'Public records to be open',
			'Except as otherwise specifically provided by law, all public records shall be open.');
		INSERT INTO constitution VALUES (1, 1, 'I', 'Bill of Rights', 'Section 1',
			'Equality and rights of men', 'That all men are by nature equally free and independent.', 1);
		INSERT INTO documents VALUES (1, 'manuals', 'foia.html', 'FOIA guide',
			'<p>Read <a href="https://law.lis.virginia.gov/vacode/2.2-3700/">the act</a>.</p>');
	`)
	require.NoError(t, err)
	return path
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "memo.txt"),
		[]byte("Records requests are governed by § 2.2-3704."), 0o644))

	cfg := DefaultConfig()
	cfg.Input = writeCorpusDB(t, dir)
	cfg.DocsDir = docs
	cfg.MetricsFile = filepath.Join(dir, "lexgraph.prom")

	p, err := New(cfg, WithEmbedder(embed.NewLocal(16)))
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultOutputName), report.Output)
	assert.NotEmpty(t, report.RunID)
	// title, chapter, article synthetic; 2 sections, 1 constitution section, 2 documents
	assert.Equal(t, 8, report.Nodes)
	assert.Equal(t, 3, report.Synthetic)
	assert.Equal(t, 5, report.Embedded)
	assert.Equal(t, 16, report.Dimensions)
	assert.Equal(t, 2, report.Edges[graph.RelReferences])

	st, err := store.OpenExisting(report.Output)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Nodes)
	assert.Equal(t, 5, stats.Embeddings)
	assert.Equal(t, "local-ngram-v1", stats.ModelName)
	assert.Equal(t, 16, stats.Dimensions)

	info, err := st.BuildInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, info["run_id"])
	assert.Equal(t, "5", info["embedded"])
	assert.NotEmpty(t, info["finished_at"])
	assert.NotEmpty(t, info["components"])

	memo, err := st.NodesByKey(ctx, graph.DocumentKey("memo.txt"))
	require.NoError(t, err)
	require.Len(t, memo, 1)
	neighbors, err := st.Neighbors(ctx, memo[0].ID, graph.RelReferences)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "2.2-3704", neighbors[0].SourceID)

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), "lexgraph_embeddings_total 5"))
}

func TestRunSkipEmbeddings(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Input = writeCorpusDB(t, dir)
	cfg.Output = filepath.Join(dir, "out", "graph.db")
	cfg.SkipEmbeddings = true

	p, err := New(cfg)
	require.NoError(t, err)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Embedded)

	st, err := store.OpenExisting(cfg.Output)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Embeddings)
	assert.Zero(t, stats.Dimensions)
}

func TestRunMissingInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input = filepath.Join(t.TempDir(), "nope.db")
	cfg.SkipEmbeddings = true

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestRunMissingDocsDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Input = writeCorpusDB(t, dir)
	cfg.DocsDir = filepath.Join(dir, "missing")
	cfg.SkipEmbeddings = true

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrInputNotFound)
}
