package store

import "fmt"

// schemaSQL is the DDL for the graph tables. The vector index is created
// separately by vecSQL once the embedding dimension is known.
const schemaSQL = `
-- Embedding model used for the run (keys: model_name, dimensions)
CREATE TABLE IF NOT EXISTS model_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Run provenance (run_id, started_at, finished_at, per-pass counts)
CREATE TABLE IF NOT EXISTS build_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY,
    source TEXT NOT NULL,
    source_id TEXT NOT NULL,
    chunk_idx INTEGER NOT NULL,
    node_type TEXT NOT NULL,
    synthetic INTEGER NOT NULL DEFAULT 0,
    text TEXT NOT NULL,
    UNIQUE(source, source_id, chunk_idx)
);

CREATE TABLE IF NOT EXISTS edges (
    from_id INTEGER NOT NULL REFERENCES nodes(id),
    to_id INTEGER NOT NULL REFERENCES nodes(id),
    rel_type TEXT NOT NULL,
    weight REAL,
    PRIMARY KEY (from_id, to_id, rel_type)
);

-- Byte range of each content node inside its cleaned source text
CREATE TABLE IF NOT EXISTS chunk_meta (
    node_id INTEGER PRIMARY KEY REFERENCES nodes(id),
    char_start INTEGER NOT NULL,
    char_end INTEGER NOT NULL
);

-- Raw vectors, little-endian float32
CREATE TABLE IF NOT EXISTS embeddings (
    node_id INTEGER PRIMARY KEY REFERENCES nodes(id),
    embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
`

// vecSQL returns the DDL of the sqlite-vec KNN index.
func vecSQL(dim int) string {
	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_nodes USING vec0(
    node_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);`, dim)
}
