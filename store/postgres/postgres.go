// Package postgres mirrors a built graph into PostgreSQL with pgvector,
// for deployments that query the graph from a shared database.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bbiangul/lexgraph/graph"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Exporter writes graphs into a PostgreSQL database.
type Exporter struct {
	pool *pgxpool.Pool
	dsn  string
}

// Open connects to dsn (a postgres:// URL), registers the pgvector types on
// every pooled connection and applies the schema migrations.
func Open(ctx context.Context, dsn string) (*Exporter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	// The vector extension must exist before the pool registers its types.
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Exporter{pool: pool, dsn: dsn}, nil
}

func (e *Exporter) Close() {
	e.pool.Close()
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: loading migrations: %w", err)
	}
	url, err := migrateURL(dsn)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("postgres: preparing migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrating: %w", err)
	}
	return nil
}

// migrateURL rewrites a postgres URL for the pgx/v5 migrate driver.
func migrateURL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	return "", fmt.Errorf("postgres: dsn must be a postgres:// URL")
}

// ExportGraph replaces the mirrored graph with set and edges. Tables are
// truncated and bulk loaded in one transaction.
func (e *Exporter) ExportGraph(ctx context.Context, set *graph.NodeSet, edges []graph.Edge) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE lex_embeddings, lex_chunk_meta, lex_edges, lex_nodes"); err != nil {
		return fmt.Errorf("postgres: truncating: %w", err)
	}

	copies := []struct {
		table   string
		columns []string
		rows    pgx.CopyFromSource
	}{
		{"lex_nodes", []string{"id", "source", "source_id", "chunk_idx", "node_type", "synthetic", "text"}, nodeRows(set)},
		{"lex_chunk_meta", []string{"node_id", "char_start", "char_end"}, chunkMetaRows(set.ChunkMeta)},
		{"lex_edges", []string{"from_id", "to_id", "rel_type", "weight"}, edgeRows(edges)},
	}
	for _, c := range copies {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, c.rows)
		if err != nil {
			return fmt.Errorf("postgres: copying %s: %w", c.table, err)
		}
		slog.Debug("postgres: copied rows", "table", c.table, "rows", n)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	slog.Info("postgres: exported graph", "nodes", len(set.Nodes), "edges", len(edges))
	return nil
}

// ExportEmbeddings bulk loads one batch of vectors.
func (e *Exporter) ExportEmbeddings(ctx context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("postgres: %d ids for %d vectors", len(ids), len(vecs))
	}
	_, err := e.pool.CopyFrom(ctx, pgx.Identifier{"lex_embeddings"}, []string{"node_id", "embedding"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			return []any{ids[i], pgvector.NewVector(vecs[i])}, nil
		}))
	if err != nil {
		return fmt.Errorf("postgres: copying embeddings: %w", err)
	}
	return nil
}

func nodeRows(set *graph.NodeSet) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(set.Nodes), func(i int) ([]any, error) {
		n := set.Nodes[i]
		return []any{n.ID, string(n.Source), n.SourceID, int32(n.ChunkIdx), string(n.NodeType), n.Synthetic, set.Texts[n.ID]}, nil
	})
}

func chunkMetaRows(meta []graph.ChunkMeta) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(meta), func(i int) ([]any, error) {
		m := meta[i]
		return []any{m.NodeID, int32(m.CharStart), int32(m.CharEnd)}, nil
	})
}

func edgeRows(edges []graph.Edge) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(edges), func(i int) ([]any, error) {
		e := edges[i]
		return []any{e.FromID, e.ToID, string(e.RelType), e.Weight}, nil
	})
}
