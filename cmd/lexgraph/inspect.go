package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/graph"
	"github.com/bbiangul/lexgraph/store"
)

var inspectFlags struct {
	db    string
	node  int64
	rel   string
	depth int
	query string
	k     int
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show statistics, nodes, neighbourhoods or nearest neighbours of a graph database",
	Long: `Without --node or --query, print database statistics and build info.

--node ID          print the node and its direct neighbours
--node ID --depth  also print every node id within that many hops
--query TEXT       embed TEXT with the model recorded in the database and
                   print the --k nearest nodes`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectFlags.db, "db", "", "graph database to inspect")
	f.Int64Var(&inspectFlags.node, "node", 0, "node id to show")
	f.StringVar(&inspectFlags.rel, "rel", "", "restrict neighbours to contains, cites or references")
	f.IntVar(&inspectFlags.depth, "depth", 0, "neighbourhood depth for --node")
	f.StringVar(&inspectFlags.query, "query", "", "text to search for")
	f.IntVar(&inspectFlags.k, "k", 10, "number of search results")
	_ = inspectCmd.MarkFlagRequired("db")
}

type nodeView struct {
	Node         *store.NodeRecord `json:"node"`
	Neighbors    []store.Neighbor  `json:"neighbors"`
	Neighborhood []int64           `json:"neighborhood,omitempty"`
}

type statsView struct {
	*store.Stats
	BySource  map[graph.Source]int `json:"by_source"`
	BuildInfo map[string]string    `json:"build_info"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := store.OpenExisting(inspectFlags.db)
	if err != nil {
		return err
	}
	defer st.Close()

	var out any
	switch {
	case cmd.Flags().Changed("node"):
		n, err := st.GetNode(ctx, inspectFlags.node)
		if err != nil {
			return err
		}
		nbrs, err := st.Neighbors(ctx, n.ID, graph.RelType(inspectFlags.rel))
		if err != nil {
			return err
		}
		view := nodeView{Node: n, Neighbors: nbrs}
		if inspectFlags.depth > 0 {
			edges, err := st.Edges(ctx)
			if err != nil {
				return err
			}
			var rels []graph.RelType
			if inspectFlags.rel != "" {
				rels = append(rels, graph.RelType(inspectFlags.rel))
			}
			view.Neighborhood = graph.Neighborhood(edges, []int64{n.ID}, inspectFlags.depth, rels...)
		}
		out = view

	case inspectFlags.query != "":
		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.Embeddings == 0 {
			return errors.New("inspect: database has no embeddings")
		}

		var e embed.Embedder
		if stats.ModelName == embed.LocalModelName {
			e = embed.NewLocal(stats.Dimensions)
		} else {
			ecfg := cfg.Embedding
			ecfg.Model = stats.ModelName
			ecfg.Dimensions = stats.Dimensions
			if e, err = embed.New(ecfg); err != nil {
				return err
			}
		}
		vec, err := e.EmbedOne(ctx, inspectFlags.query)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		if out, err = st.Search(ctx, vec, inspectFlags.k); err != nil {
			return err
		}

	default:
		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		bySource, err := st.NodesBySource(ctx)
		if err != nil {
			return err
		}
		info, err := st.BuildInfo(ctx)
		if err != nil {
			return err
		}
		out = statsView{Stats: stats, BySource: bySource, BuildInfo: info}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
