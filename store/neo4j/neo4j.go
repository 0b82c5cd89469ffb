// Package neo4j mirrors a built graph into a Neo4j database as :LexNode
// vertices joined by CONTAINS, CITES and REFERENCES relationships.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bbiangul/lexgraph/graph"
)

const defaultBatchSize = 1000

// Config holds the connection settings.
type Config struct {
	URI       string `yaml:"uri" json:"uri"`
	User      string `yaml:"user" json:"user"`
	Password  string `yaml:"password" json:"password"`
	Database  string `yaml:"database" json:"database"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

// Exporter writes graphs into Neo4j.
type Exporter struct {
	driver    neo4jdrv.DriverWithContext
	database  string
	batchSize int
}

// relLabels maps edge kinds to relationship types. Only these labels are
// ever interpolated into Cypher.
var relLabels = map[graph.RelType]string{
	graph.RelContains:   "CONTAINS",
	graph.RelCites:      "CITES",
	graph.RelReferences: "REFERENCES",
}

// Open creates a driver and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	driver, err := neo4jdrv.NewDriverWithContext(cfg.URI, neo4jdrv.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4jdrv.Config) {
			c.SocketConnectTimeout = 10 * time.Second
		})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Exporter{driver: driver, database: cfg.Database, batchSize: cfg.BatchSize}, nil
}

func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// ExportGraph replaces every :LexNode with the nodes of set and links them
// with edges. Nodes and edges are written with UNWIND in batches.
func (e *Exporter) ExportGraph(ctx context.Context, set *graph.NodeSet, edges []graph.Edge) error {
	session := e.driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   neo4jdrv.AccessModeWrite,
		DatabaseName: e.database,
	})
	defer session.Close(ctx)

	for _, q := range []string{
		`CREATE CONSTRAINT lexnode_id_unique IF NOT EXISTS FOR (n:LexNode) REQUIRE n.id IS UNIQUE`,
		`MATCH (n:LexNode) CALL { WITH n DETACH DELETE n } IN TRANSACTIONS OF 10000 ROWS`,
	} {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("neo4j: preparing database: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("neo4j: preparing database: %w", err)
		}
	}

	rows := nodeRows(set)
	for _, batch := range batches(rows, e.batchSize) {
		if err := e.write(ctx, session, nodeQuery, batch); err != nil {
			return fmt.Errorf("neo4j: writing nodes: %w", err)
		}
	}

	grouped, err := edgeRows(edges)
	if err != nil {
		return err
	}
	for _, rel := range graph.RelTypes {
		query := edgeQuery(relLabels[rel])
		for _, batch := range batches(grouped[rel], e.batchSize) {
			if err := e.write(ctx, session, query, batch); err != nil {
				return fmt.Errorf("neo4j: writing %s edges: %w", rel, err)
			}
		}
	}

	slog.Info("neo4j: exported graph", "nodes", len(rows), "edges", len(edges))
	return nil
}

func (e *Exporter) write(ctx context.Context, session neo4jdrv.SessionWithContext, query string, rows []map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

const nodeQuery = `
UNWIND $rows AS r
MERGE (n:LexNode {id: r.id})
SET n.source = r.source,
    n.source_id = r.source_id,
    n.chunk_idx = r.chunk_idx,
    n.node_type = r.node_type,
    n.synthetic = r.synthetic,
    n.text = r.text
`

func edgeQuery(label string) string {
	return fmt.Sprintf(`
UNWIND $rows AS r
MATCH (a:LexNode {id: r.from})
MATCH (b:LexNode {id: r.to})
MERGE (a)-[:%s]->(b)
`, label)
}

func nodeRows(set *graph.NodeSet) []map[string]any {
	rows := make([]map[string]any, len(set.Nodes))
	for i, n := range set.Nodes {
		rows[i] = map[string]any{
			"id":        n.ID,
			"source":    string(n.Source),
			"source_id": n.SourceID,
			"chunk_idx": int64(n.ChunkIdx),
			"node_type": string(n.NodeType),
			"synthetic": n.Synthetic,
			"text":      set.Texts[n.ID],
		}
	}
	return rows
}

// edgeRows groups edges by relationship type. An edge kind without a
// relationship label is an error.
func edgeRows(edges []graph.Edge) (map[graph.RelType][]map[string]any, error) {
	out := make(map[graph.RelType][]map[string]any, len(relLabels))
	for _, e := range edges {
		if _, ok := relLabels[e.RelType]; !ok {
			return nil, fmt.Errorf("neo4j: no relationship label for %q", e.RelType)
		}
		out[e.RelType] = append(out[e.RelType], map[string]any{"from": e.FromID, "to": e.ToID})
	}
	return out, nil
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for lo := 0; lo < len(items); lo += size {
		out = append(out, items[lo:min(lo+size, len(items))])
	}
	return out
}
