package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"
)

// maxInputTokens is the input limit of OpenAI's embedding models.
const maxInputTokens = 8191

// openAIEmbedder uses the official OpenAI SDK. Inputs are truncated to
// maxInputTokens with the model's tokenizer before they are sent.
type openAIEmbedder struct {
	cfg    Config
	client openai.Client
	dims   dimTracker

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewOpenAI creates a backend for the OpenAI embeddings API. An empty
// BaseURL uses the SDK default.
func NewOpenAI(cfg Config) (Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(maxRetries),
	}
	if cfg.BaseURL != "" {
		base := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		opts = append(opts, option.WithBaseURL(base+"/"))
	}

	e := &openAIEmbedder{cfg: cfg, client: openai.NewClient(opts...)}
	if cfg.Dimensions > 0 {
		e.dims.dim = cfg.Dimensions
	} else {
		e.dims.dim = modelDimensions(cfg.Model)
	}
	return e, nil
}

func (e *openAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = e.truncate(t)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: e.cfg.Model,
	}
	if e.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.cfg.Dimensions))
	}

	response, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed request failed: %w", err)
	}
	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range response.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(inputs) {
			return nil, fmt.Errorf("embedding index out of range: %d", d.Index)
		}
		out[idx] = float64sToFloat32s(d.Embedding)
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	if err := e.dims.check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *openAIEmbedder) Dimensions() int { return e.dims.get() }
func (e *openAIEmbedder) Model() string   { return e.cfg.Model }

// truncate cuts text to maxInputTokens tokens. Every token covers at least
// one byte, so shorter texts skip the tokenizer entirely.
func (e *openAIEmbedder) truncate(text string) string {
	if len(text) <= maxInputTokens {
		return text
	}
	e.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(e.cfg.Model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			slog.Warn("embed: tokenizer unavailable, truncating by bytes", "model", e.cfg.Model, "error", err)
			return
		}
		e.enc = enc
	})
	if e.enc == nil {
		return truncateBytes(text, maxInputTokens*3)
	}

	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) <= maxInputTokens {
		return text
	}
	return e.enc.Decode(tokens[:maxInputTokens])
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
