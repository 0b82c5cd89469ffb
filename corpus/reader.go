package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// Reader reads raw records from a corpus SQLite database. The database is
// opened read-only.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens the corpus database at path. A missing file is reported with
// an error wrapping fs.ErrNotExist rather than creating an empty database.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("corpus.Open: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("corpus.Open: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("corpus.Open: pinging database: %w", err)
	}
	return &Reader{db: db, path: path}, nil
}

// Close closes the underlying database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// ReadAll reads every table. Tables absent from the database yield no
// records.
func (r *Reader) ReadAll(ctx context.Context) (*Corpus, error) {
	var (
		c   Corpus
		err error
	)
	if c.Code, err = r.ReadCode(ctx); err != nil {
		return nil, err
	}
	if c.Constitution, err = r.ReadConstitution(ctx); err != nil {
		return nil, err
	}
	if c.Authorities, err = r.ReadAuthorities(ctx); err != nil {
		return nil, err
	}
	if c.Courts, err = r.ReadCourts(ctx); err != nil {
		return nil, err
	}
	if c.PopularNames, err = r.ReadPopularNames(ctx); err != nil {
		return nil, err
	}
	if c.Documents, err = r.ReadDocuments(ctx); err != nil {
		return nil, err
	}

	slog.Info("corpus: read input", "path", r.path,
		"virginia_code", len(c.Code),
		"constitution", len(c.Constitution),
		"authorities", len(c.Authorities),
		"courts", len(c.Courts),
		"popular_names", len(c.PopularNames),
		"documents", len(c.Documents),
	)
	return &c, nil
}

// ReadCode reads the statute table.
func (r *Reader) ReadCode(ctx context.Context) ([]CodeRecord, error) {
	return readTable(ctx, r, TableCode, `
		SELECT id, COALESCE(title_num,''), COALESCE(title_name,''),
		       COALESCE(chapter_num,''), COALESCE(chapter_name,''),
		       COALESCE(section,''), COALESCE(title,''), COALESCE(body,'')
		FROM virginia_code ORDER BY id`,
		func(rows *sql.Rows) (CodeRecord, error) {
			var rec CodeRecord
			err := rows.Scan(&rec.ID, &rec.TitleNum, &rec.TitleName, &rec.ChapterNum,
				&rec.ChapterName, &rec.Section, &rec.Title, &rec.Body)
			return rec, err
		})
}

// ReadConstitution reads the constitution table.
func (r *Reader) ReadConstitution(ctx context.Context) ([]ConstitutionRecord, error) {
	return readTable(ctx, r, TableConstitution, `
		SELECT id, COALESCE(article_id,0), COALESCE(article,''), COALESCE(article_name,''),
		       COALESCE(section_name,''), COALESCE(section_title,''),
		       COALESCE(section_text,''), COALESCE(section_count,0)
		FROM constitution ORDER BY id`,
		func(rows *sql.Rows) (ConstitutionRecord, error) {
			var rec ConstitutionRecord
			err := rows.Scan(&rec.ID, &rec.ArticleID, &rec.Article, &rec.ArticleName,
				&rec.SectionName, &rec.SectionTitle, &rec.SectionText, &rec.SectionCount)
			return rec, err
		})
}

// ReadAuthorities reads the authorities table.
func (r *Reader) ReadAuthorities(ctx context.Context) ([]AuthorityRecord, error) {
	return readTable(ctx, r, TableAuthorities, `
		SELECT id, COALESCE(name,''), COALESCE(short_name,''), COALESCE(codified,''),
		       COALESCE(title,''), COALESCE(section,''), COALESCE(body,'')
		FROM authorities ORDER BY id`,
		func(rows *sql.Rows) (AuthorityRecord, error) {
			var rec AuthorityRecord
			err := rows.Scan(&rec.ID, &rec.Name, &rec.ShortName, &rec.Codified,
				&rec.Title, &rec.Section, &rec.Body)
			return rec, err
		})
}

// ReadCourts reads the courts table.
func (r *Reader) ReadCourts(ctx context.Context) ([]CourtRecord, error) {
	return readTable(ctx, r, TableCourts, `
		SELECT id, COALESCE(name,''), COALESCE(locality,''), COALESCE(type,''),
		       COALESCE(district,''), COALESCE(address,''), COALESCE(city,''),
		       COALESCE(state,''), COALESCE(zip,'')
		FROM courts ORDER BY id`,
		func(rows *sql.Rows) (CourtRecord, error) {
			var rec CourtRecord
			err := rows.Scan(&rec.ID, &rec.Name, &rec.Locality, &rec.CourtType,
				&rec.District, &rec.Address, &rec.City, &rec.State, &rec.Zip)
			return rec, err
		})
}

// ReadPopularNames reads the popular_names table.
func (r *Reader) ReadPopularNames(ctx context.Context) ([]PopularNameRecord, error) {
	return readTable(ctx, r, TablePopularNames, `
		SELECT id, COALESCE(name,''), COALESCE(title_num,''),
		       COALESCE(section,''), COALESCE(body,'')
		FROM popular_names ORDER BY id`,
		func(rows *sql.Rows) (PopularNameRecord, error) {
			var rec PopularNameRecord
			err := rows.Scan(&rec.ID, &rec.Name, &rec.TitleNum, &rec.Section, &rec.Body)
			return rec, err
		})
}

// ReadDocuments reads the documents table.
func (r *Reader) ReadDocuments(ctx context.Context) ([]DocumentRecord, error) {
	return readTable(ctx, r, TableDocuments, `
		SELECT id, COALESCE(dataset,''), COALESCE(filename,''),
		       COALESCE(title,''), COALESCE(content,'')
		FROM documents ORDER BY id`,
		func(rows *sql.Rows) (DocumentRecord, error) {
			var rec DocumentRecord
			err := rows.Scan(&rec.ID, &rec.Dataset, &rec.Filename, &rec.Title, &rec.Content)
			return rec, err
		})
}

func (r *Reader) hasTable(ctx context.Context, table string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	return n > 0, err
}

func readTable[T any](ctx context.Context, r *Reader, table, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	ok, err := r.hasTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("corpus: checking table %s: %w", table, err)
	}
	if !ok {
		slog.Warn("corpus: table missing, treating as empty", "table", table)
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("corpus: scanning %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", table, err)
	}
	return out, nil
}
