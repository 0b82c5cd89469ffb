package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const defaultOllamaURL = "http://localhost:11434"

// ollamaEmbedder uses Ollama's native /api/embed endpoint, which takes a
// whole batch in one request.
type ollamaEmbedder struct {
	cfg    Config
	client *api.Client
	dims   dimTracker
}

// NewOllama creates a backend for an Ollama server.
func NewOllama(cfg Config) (Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("embed.NewOllama: parse base url: %w", err)
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}
	if cfg.APIKey != "" {
		httpClient.Transport = &bearerTransport{token: cfg.APIKey, rt: http.DefaultTransport}
	}

	e := &ollamaEmbedder{cfg: cfg, client: api.NewClient(u, httpClient)}
	if cfg.Dimensions > 0 {
		e.dims.dim = cfg.Dimensions
	} else {
		e.dims.dim = modelDimensions(cfg.Model)
	}
	return e, nil
}

func (e *ollamaEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	res, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.cfg.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	if err := e.dims.check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ollamaEmbedder) Dimensions() int { return e.dims.get() }
func (e *ollamaEmbedder) Model() string   { return e.cfg.Model }

type bearerTransport struct {
	token string
	rt    http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.rt.RoundTrip(r)
}
