package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bbiangul/lexgraph/graph"
)

func init() {
	sqlite_vec.Auto()
}

// Model info keys.
const (
	KeyModelName  = "model_name"
	KeyDimensions = "dimensions"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("store: not found")

// NodeRecord is a persisted node together with its text.
type NodeRecord struct {
	graph.Node
	Text string `json:"text"`
}

// Neighbor is a node adjacent to another through one edge.
type Neighbor struct {
	NodeRecord
	RelType   graph.RelType `json:"rel_type"`
	Direction string        `json:"direction"` // "out" or "in"
}

// SearchResult is a KNN hit scored by cosine similarity.
type SearchResult struct {
	NodeRecord
	Score float64 `json:"score"`
}

// Stats summarises the contents of a graph database.
type Stats struct {
	Nodes      int                   `json:"nodes"`
	Synthetic  int                   `json:"synthetic"`
	Edges      int                   `json:"edges"`
	EdgesByRel map[graph.RelType]int `json:"edges_by_rel"`
	ChunkMeta  int                   `json:"chunk_meta"`
	Embeddings int                   `json:"embeddings"`
	ModelName  string                `json:"model_name,omitempty"`
	Dimensions int                   `json:"dimensions,omitempty"`
}

// Store wraps the SQLite graph database.
type Store struct {
	db           *sql.DB
	embeddingDim int
	readOnly     bool
}

// Create builds a fresh graph database at path. Any existing file (and its
// WAL side files) is removed first, so each run starts from an empty
// schema.
func Create(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing previous database: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// OpenExisting opens a built graph database read-only.
func OpenExisting(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := checkVersion(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, readOnly: true}
	var dim string
	err = db.QueryRow("SELECT value FROM model_info WHERE key = ?", KeyDimensions).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("reading model info: %w", err)
	default:
		s.embeddingDim, _ = strconv.Atoi(dim)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the vector dimension, or 0 before WriteModelInfo.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Writes ---

// WriteGraph persists every node with its text, the chunk metadata and the
// edges in one transaction. Duplicate edges are ignored.
func (s *Store) WriteGraph(ctx context.Context, set *graph.NodeSet, edges []graph.Edge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		nodeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO nodes (id, source, source_id, chunk_idx, node_type, synthetic, text)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer nodeStmt.Close()
		for _, n := range set.Nodes {
			if _, err := nodeStmt.ExecContext(ctx, n.ID, n.Source, n.SourceID, n.ChunkIdx,
				n.NodeType, n.Synthetic, set.Texts[n.ID]); err != nil {
				return fmt.Errorf("inserting node %d: %w", n.ID, err)
			}
		}

		metaStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO chunk_meta (node_id, char_start, char_end) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer metaStmt.Close()
		for _, m := range set.ChunkMeta {
			if _, err := metaStmt.ExecContext(ctx, m.NodeID, m.CharStart, m.CharEnd); err != nil {
				return fmt.Errorf("inserting chunk meta %d: %w", m.NodeID, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO edges (from_id, to_id, rel_type, weight) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer edgeStmt.Close()
		for _, e := range edges {
			if _, err := edgeStmt.ExecContext(ctx, e.FromID, e.ToID, e.RelType, e.Weight); err != nil {
				return fmt.Errorf("inserting edge %d->%d: %w", e.FromID, e.ToID, err)
			}
		}
		return nil
	})
}

// WriteModelInfo records the embedding model and creates the vector index
// for its dimension.
func (s *Store) WriteModelInfo(ctx context.Context, model string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertKV(ctx, tx, "model_info", map[string]string{
			KeyModelName:  model,
			KeyDimensions: strconv.Itoa(dim),
		}); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, vecSQL(dim))
		return err
	})
	if err != nil {
		return fmt.Errorf("writing model info: %w", err)
	}
	s.embeddingDim = dim
	return nil
}

// WriteBuildInfo upserts run provenance entries.
func (s *Store) WriteBuildInfo(ctx context.Context, info map[string]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertKV(ctx, tx, "build_info", info)
	})
}

// WriteEmbeddings stores one vector per node id, both as a raw blob and in
// the KNN index. Every vector must match the dimension recorded by
// WriteModelInfo.
func (s *Store) WriteEmbeddings(ctx context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("writing embeddings: %d ids for %d vectors", len(ids), len(vecs))
	}
	if s.embeddingDim == 0 {
		return fmt.Errorf("writing embeddings: model info not written")
	}
	for i, v := range vecs {
		if len(v) != s.embeddingDim {
			return fmt.Errorf("writing embeddings: node %d has %d dimensions, want %d", ids[i], len(v), s.embeddingDim)
		}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		blobStmt, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO embeddings (node_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer blobStmt.Close()
		vecStmt, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO vec_nodes (node_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()

		for i, id := range ids {
			buf := serializeFloat32(vecs[i])
			if _, err := blobStmt.ExecContext(ctx, id, buf); err != nil {
				return fmt.Errorf("inserting embedding %d: %w", id, err)
			}
			if _, err := vecStmt.ExecContext(ctx, id, buf); err != nil {
				return fmt.Errorf("indexing embedding %d: %w", id, err)
			}
		}
		return nil
	})
}

// --- Reads ---

// Stats returns row counts and the recorded model.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{EdgesByRel: make(map[graph.RelType]int), Dimensions: s.embeddingDim}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &stats.Nodes},
		{"SELECT COUNT(*) FROM nodes WHERE synthetic = 1", &stats.Synthetic},
		{"SELECT COUNT(*) FROM edges", &stats.Edges},
		{"SELECT COUNT(*) FROM chunk_meta", &stats.ChunkMeta},
		{"SELECT COUNT(*) FROM embeddings", &stats.Embeddings},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT rel_type, COUNT(*) FROM edges GROUP BY rel_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rel graph.RelType
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return nil, err
		}
		stats.EdgesByRel[rel] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT value FROM model_info WHERE key = ?", KeyModelName).Scan(&stats.ModelName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return stats, nil
}

// NodesBySource returns the node count per source table.
func (s *Store) NodesBySource(ctx context.Context) (map[graph.Source]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM nodes GROUP BY source")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[graph.Source]int)
	for rows.Next() {
		var src graph.Source
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		out[src] = n
	}
	return out, rows.Err()
}

const nodeColumns = "n.id, n.source, n.source_id, n.chunk_idx, n.node_type, n.synthetic, n.text"

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner, extra ...any) (NodeRecord, error) {
	var r NodeRecord
	dest := append([]any{&r.ID, &r.Source, &r.SourceID, &r.ChunkIdx, &r.NodeType, &r.Synthetic, &r.Text}, extra...)
	err := row.Scan(dest...)
	return r, err
}

// GetNode returns one node by id.
func (s *Store) GetNode(ctx context.Context, id int64) (*NodeRecord, error) {
	r, err := scanNode(s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes n WHERE n.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// NodesByKey returns every chunk of a structural key in chunk order.
func (s *Store) NodesByKey(ctx context.Context, key graph.Key) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+nodeColumns+
		" FROM nodes n WHERE n.source = ? AND n.source_id = ? ORDER BY n.chunk_idx", key.Source, key.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeRecord
	for rows.Next() {
		r, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Neighbors returns the nodes linked to id by outgoing and incoming edges,
// optionally restricted to one relationship type (empty means all).
// Outgoing neighbours come first; each group is ordered by node id.
func (s *Store) Neighbors(ctx context.Context, id int64, rel graph.RelType) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`, e.rel_type, 'out'
		FROM edges e JOIN nodes n ON n.id = e.to_id
		WHERE e.from_id = ? AND (? = '' OR e.rel_type = ?)
		UNION ALL
		SELECT `+nodeColumns+`, e.rel_type, 'in'
		FROM edges e JOIN nodes n ON n.id = e.from_id
		WHERE e.to_id = ? AND (? = '' OR e.rel_type = ?)
		ORDER BY 9 DESC, 1`, id, rel, rel, id, rel, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		r, err := scanNode(rows, &nb.RelType, &nb.Direction)
		if err != nil {
			return nil, err
		}
		nb.NodeRecord = r
		out = append(out, nb)
	}
	return out, rows.Err()
}

// Edges returns every persisted edge in (from, to, rel) order.
func (s *Store) Edges(ctx context.Context) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT from_id, to_id, rel_type, weight FROM edges ORDER BY from_id, to_id, rel_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var w sql.NullFloat64
		if err := rows.Scan(&e.FromID, &e.ToID, &e.RelType, &w); err != nil {
			return nil, err
		}
		if w.Valid {
			e.Weight = &w.Float64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search performs a KNN search over node embeddings and returns the k
// closest nodes, most similar first.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if s.embeddingDim == 0 {
		return nil, fmt.Errorf("search: database has no embeddings")
	}
	if len(query) != s.embeddingDim {
		return nil, fmt.Errorf("search: query has %d dimensions, want %d", len(query), s.embeddingDim)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`, v.distance
		FROM vec_nodes v
		JOIN nodes n ON n.id = v.node_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var distance float64
		r, err := scanNode(rows, &distance)
		if err != nil {
			return nil, err
		}
		// Cosine distance to similarity.
		results = append(results, SearchResult{NodeRecord: r, Score: 1.0 - distance})
	}
	return results, rows.Err()
}

// Embedding returns the stored vector of a node.
func (s *Store) Embedding(ctx context.Context, id int64) ([]float32, error) {
	var buf []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM embeddings WHERE node_id = ?", id).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return deserializeFloat32(buf), nil
}

// BuildInfo returns every build_info entry.
func (s *Store) BuildInfo(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM build_info")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if s.readOnly {
		return fmt.Errorf("store opened read-only")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// upsertKV writes key/value rows in key order. table is one of the
// package's own key/value tables, never caller input.
func upsertKV(ctx context.Context, tx *sql.Tx, table string, kv map[string]string) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO "+table+" (key, value) VALUES (?, ?)", k, kv[k]); err != nil {
			return fmt.Errorf("writing %s.%s: %w", table, k, err)
		}
	}
	return nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
