// Package embed turns node texts into vectors. A backend is picked once
// from Config by New; the Batcher drives it over a whole node set.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrUnknownBackend is returned by New for a provider outside the
	// supported set.
	ErrUnknownBackend = errors.New("embed: unknown backend")

	// ErrEmbeddingFailed is returned when a single text still fails after
	// retries.
	ErrEmbeddingFailed = errors.New("embed: embedding failed")

	// ErrDimensionMismatch is returned when a backend hands back a vector
	// whose length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embed: dimension mismatch")
)

// Embedder is the interface every backend implements.
type Embedder interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one call. The result is index-aligned
	// with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length, or 0 while it is still unknown
	// (remote backends learn it from their first response).
	Dimensions() int

	// Model names the embedding model.
	Model() string
}

// Config selects and configures a backend.
type Config struct {
	Provider   string `json:"provider" yaml:"provider" validate:"omitempty,oneof=ollama openai lmstudio custom local"`
	Model      string `json:"model" yaml:"model"`
	BaseURL    string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	Dimensions int    `json:"dimensions" yaml:"dimensions" validate:"gte=0"`
	BatchSize  int    `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// Provider names.
const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderLMStudio = "lmstudio"
	ProviderCustom   = "custom"
	ProviderLocal    = "local"
)

// New creates the backend named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderLMStudio:
		return NewLMStudio(cfg), nil
	case ProviderCustom:
		return NewOpenAICompat(cfg), nil
	case ProviderLocal:
		return NewLocal(cfg.Dimensions), nil
	case "":
		return nil, fmt.Errorf("%w: provider not specified", ErrUnknownBackend)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Provider)
	}
}

// knownDimensions holds the output size of common embedding models so a
// store can be sized before the first request.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"bge-m3":                 1024,
}

func modelDimensions(model string) int {
	name, _, _ := strings.Cut(model, ":")
	return knownDimensions[name]
}

// Resolve returns e's dimension, embedding sample once when the backend
// does not know it yet.
func Resolve(ctx context.Context, e Embedder, sample string) (int, error) {
	if d := e.Dimensions(); d > 0 {
		return d, nil
	}
	vec, err := e.EmbedOne(ctx, sample)
	if err != nil {
		return 0, fmt.Errorf("embed.Resolve: %w", err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("embed.Resolve: %w: empty vector from %s", ErrDimensionMismatch, e.Model())
	}
	return len(vec), nil
}

// dimTracker records the dimension of the first vector a remote backend
// returns and checks the rest against it.
type dimTracker struct {
	mu  sync.Mutex
	dim int
}

func (d *dimTracker) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dim
}

func (d *dimTracker) check(vecs [][]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range vecs {
		if d.dim == 0 {
			d.dim = len(v)
		}
		if len(v) != d.dim {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), d.dim)
		}
	}
	return nil
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
