package lexgraph

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bbiangul/lexgraph/chunker"
	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/store/neo4j"
)

// DefaultOutputName is the output file created next to the input when no
// output path is given.
const DefaultOutputName = "embeddings.sqlite.db"

// Config holds all configuration for a graph build.
type Config struct {
	// Input is the corpus SQLite database.
	Input string `json:"input" yaml:"input" validate:"required"`

	// Output is the graph database to create. Defaults to
	// embeddings.sqlite.db next to Input. An existing file is replaced.
	Output string `json:"output" yaml:"output"`

	// DocsDir optionally adds every parseable file under it to the
	// documents source.
	DocsDir string `json:"docs_dir" yaml:"docs_dir"`
	Dataset string `json:"dataset" yaml:"dataset"`

	// Chunking
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens" validate:"gt=0"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap" validate:"gte=0,ltfield=MaxChunkTokens"`

	// Concurrency bounds citation extraction and document parsing workers.
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=0"`

	// Embeddings
	SkipEmbeddings bool         `json:"skip_embeddings" yaml:"skip_embeddings"`
	Embedding      embed.Config `json:"embedding" yaml:"embedding"`

	// Optional exports
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
	Neo4j    neo4j.Config   `json:"neo4j" yaml:"neo4j"`

	// MetricsFile receives the Prometheus textfile after the run.
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`

	Log LogConfig `json:"log" yaml:"log"`
}

// PostgresConfig configures the optional PostgreSQL mirror.
type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn" validate:"omitempty,startswith=postgres"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with defaults for a local Ollama server.
func DefaultConfig() Config {
	return Config{
		Dataset:        "documents",
		MaxChunkTokens: chunker.DefaultMaxTokens,
		ChunkOverlap:   chunker.DefaultOverlap,
		Concurrency:    8,
		Embedding: embed.Config{
			Provider:  embed.ProviderOllama,
			Model:     "nomic-embed-text",
			BaseURL:   "http://localhost:11434",
			BatchSize: embed.DefaultBatchSize,
		},
		Log: LogConfig{
			Format: "console",
			Level:  "info",
		},
	}
}

// LoadConfig builds a Config from the defaults, the YAML file at path (if
// path is non-empty), a .env file in the working directory (if present)
// and LEXGRAPH_* environment variables, in that order. The result is not
// validated; callers apply flags first and then call Validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: reading .env", "error", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from LEXGRAPH_* environment variables.
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"LEXGRAPH_INPUT":          &c.Input,
		"LEXGRAPH_OUTPUT":         &c.Output,
		"LEXGRAPH_DOCS_DIR":       &c.DocsDir,
		"LEXGRAPH_DATASET":        &c.Dataset,
		"LEXGRAPH_EMBED_PROVIDER": &c.Embedding.Provider,
		"LEXGRAPH_EMBED_MODEL":    &c.Embedding.Model,
		"LEXGRAPH_EMBED_BASE_URL": &c.Embedding.BaseURL,
		"LEXGRAPH_EMBED_API_KEY":  &c.Embedding.APIKey,
		"LEXGRAPH_POSTGRES_DSN":   &c.Postgres.DSN,
		"LEXGRAPH_NEO4J_URI":      &c.Neo4j.URI,
		"LEXGRAPH_NEO4J_USER":     &c.Neo4j.User,
		"LEXGRAPH_NEO4J_PASSWORD": &c.Neo4j.Password,
		"LEXGRAPH_NEO4J_DATABASE": &c.Neo4j.Database,
		"LEXGRAPH_METRICS_FILE":   &c.MetricsFile,
		"LEXGRAPH_LOG_FORMAT":     &c.Log.Format,
		"LEXGRAPH_LOG_LEVEL":      &c.Log.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	num := map[string]*int{
		"LEXGRAPH_MAX_CHUNK_TOKENS": &c.MaxChunkTokens,
		"LEXGRAPH_CHUNK_OVERLAP":    &c.ChunkOverlap,
		"LEXGRAPH_CONCURRENCY":      &c.Concurrency,
		"LEXGRAPH_EMBED_DIMENSIONS": &c.Embedding.Dimensions,
		"LEXGRAPH_BATCH_SIZE":       &c.Embedding.BatchSize,
	}
	for key, dst := range num {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	if v := os.Getenv("LEXGRAPH_SKIP_EMBEDDINGS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: LEXGRAPH_SKIP_EMBEDDINGS=%q is not a boolean", ErrInvalidConfig, v)
		}
		c.SkipEmbeddings = b
	}

	// Fallback: the provider's well-known key variable.
	if c.Embedding.APIKey == "" && c.Embedding.Provider == embed.ProviderOpenAI {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

var validate = validator.New()

// Validate checks c and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.SkipEmbeddings && c.Embedding.Provider == "" {
		return fmt.Errorf("%w: embedding provider not specified", ErrInvalidConfig)
	}
	if c.Embedding.Provider == embed.ProviderOpenAI && c.Embedding.APIKey == "" && !c.SkipEmbeddings {
		return fmt.Errorf("%w: openai embeddings need an api key", ErrInvalidConfig)
	}
	return nil
}

// ResolveOutput returns the output path, defaulting to DefaultOutputName
// in Input's directory.
func (c *Config) ResolveOutput() string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(filepath.Dir(c.Input), DefaultOutputName)
}
