package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bbiangul/lexgraph"
)

var buildFlags struct {
	input          string
	output         string
	docsDir        string
	skipEmbeddings bool
	batchSize      int
	postgres       string
	neo4j          string
	metricsFile    string
	report         bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the graph database from a corpus",
	Long: `Read the corpus database (and optionally a directory of documents),
build nodes and edges, write them to a new SQLite graph database and embed
every content node.

Node sources:  virginia_code, constitution, authorities, courts, popular_names, documents
Edge types:    contains, cites, references`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.input, "input", "", "corpus SQLite database")
	f.StringVar(&buildFlags.output, "output", "", "output graph database (default: embeddings.sqlite.db next to --input)")
	f.StringVar(&buildFlags.docsDir, "docs-dir", "", "directory of extra documents (pdf, docx, xlsx, html, txt, md)")
	f.BoolVar(&buildFlags.skipEmbeddings, "skip-embeddings", false, "build the graph without embeddings")
	f.IntVar(&buildFlags.batchSize, "batch-size", 0, "texts per embedding request (default 64)")
	f.StringVar(&buildFlags.postgres, "postgres", "", "mirror the graph into this PostgreSQL DSN")
	f.StringVar(&buildFlags.neo4j, "neo4j", "", "mirror the graph into this Neo4j URI")
	f.StringVar(&buildFlags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	f.BoolVar(&buildFlags.report, "report", false, "print the build report as JSON on stdout")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fl := cmd.Flags()
	if fl.Changed("input") {
		cfg.Input = buildFlags.input
	}
	if fl.Changed("output") {
		cfg.Output = buildFlags.output
	}
	if fl.Changed("docs-dir") {
		cfg.DocsDir = buildFlags.docsDir
	}
	if fl.Changed("skip-embeddings") {
		cfg.SkipEmbeddings = buildFlags.skipEmbeddings
	}
	if fl.Changed("batch-size") {
		cfg.Embedding.BatchSize = buildFlags.batchSize
	}
	if fl.Changed("postgres") {
		cfg.Postgres.DSN = buildFlags.postgres
	}
	if fl.Changed("neo4j") {
		cfg.Neo4j.URI = buildFlags.neo4j
	}
	if fl.Changed("metrics-file") {
		cfg.MetricsFile = buildFlags.metricsFile
	}

	p, err := lexgraph.New(cfg)
	if err != nil {
		return err
	}
	report, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	if buildFlags.report {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return nil
}
