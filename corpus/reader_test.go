//go:build cgo

package corpus

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCorpusDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE virginia_code (id INTEGER PRIMARY KEY, title_num TEXT, title_name TEXT,
			chapter_num TEXT, chapter_name TEXT, section TEXT, title TEXT, body TEXT);
		CREATE TABLE courts (id INTEGER PRIMARY KEY, name TEXT, locality TEXT, type TEXT,
			district TEXT, address TEXT, city TEXT, state TEXT, zip TEXT);
		CREATE TABLE documents (id INTEGER PRIMARY KEY, dataset TEXT, filename TEXT, title TEXT, content TEXT);

		INSERT INTO virginia_code VALUES (2, '1', 'General Provisions', NULL, NULL, '1-200', 'Common law', '<p>The common law of England...</p>');
		INSERT INTO virginia_code VALUES (1, '1', 'General Provisions', '1', 'Enactment', '1-1', 'Code', 'Body');
		INSERT INTO courts VALUES (7, 'Circuit Court', 'Fairfax', 'Circuit', '19th', NULL, 'Fairfax', 'VA', '22030');
		INSERT INTO documents VALUES (1, 'manuals', 'guide.html', 'Guide', '<p>content</p>');
	`)
	require.NoError(t, err)
	return path
}

func TestReaderReadAll(t *testing.T) {
	r, err := Open(newTestCorpusDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	c, err := r.ReadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, c.Code, 2)
	assert.Equal(t, int64(1), c.Code[0].ID, "rows are ordered by id")
	assert.Equal(t, "", c.Code[1].ChapterNum, "NULL columns read as empty strings")
	assert.Equal(t, "1-200", c.Code[1].Section)

	require.Len(t, c.Courts, 1)
	assert.Equal(t, "Circuit", c.Courts[0].CourtType)
	assert.Equal(t, "", c.Courts[0].Address)

	require.Len(t, c.Documents, 1)
	assert.Equal(t, "<p>content</p>", c.Documents[0].Content)

	// Tables absent from the file are empty, not errors.
	assert.Empty(t, c.Constitution)
	assert.Empty(t, c.Authorities)
	assert.Empty(t, c.PopularNames)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReaderIsReadOnly(t *testing.T) {
	r, err := Open(newTestCorpusDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	_, err = r.db.Exec("DELETE FROM courts")
	assert.Error(t, err)
}
