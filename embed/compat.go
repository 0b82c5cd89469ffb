package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries        = 6
	baseRetryDelay    = 2 * time.Second
	minRateLimitDelay = 5 * time.Second // minimum delay for 429 errors

	defaultLMStudioURL = "http://localhost:1234"
)

// openAICompatClient talks to any server exposing the OpenAI
// /v1/embeddings endpoint (LM Studio, vLLM, llama.cpp, ...).
type openAICompatClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string // API path prefix, defaults to "/v1"

	retryDelay     time.Duration
	rateLimitDelay time.Duration

	dims dimTracker
}

func newOpenAICompatClient(cfg Config) *openAICompatClient {
	// Generous timeout: local servers may load the model on first request.
	c := &openAICompatClient{
		cfg:            cfg,
		pathPrefix:     "/v1",
		client:         &http.Client{Timeout: 120 * time.Second},
		retryDelay:     baseRetryDelay,
		rateLimitDelay: minRateLimitDelay,
	}
	if cfg.Dimensions > 0 {
		c.dims.dim = cfg.Dimensions
	} else {
		c.dims.dim = modelDimensions(cfg.Model)
	}
	return c
}

// NewOpenAICompat creates a backend for a generic OpenAI-compatible
// server at cfg.BaseURL.
func NewOpenAICompat(cfg Config) Embedder {
	return &openAICompatEmbedder{base: newOpenAICompatClient(cfg)}
}

// NewLMStudio creates a backend for a local LM Studio server.
func NewLMStudio(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLMStudioURL
	}
	return &lmStudioEmbedder{base: newOpenAICompatClient(cfg)}
}

type openAICompatEmbedder struct {
	base *openAICompatClient
}

func (e *openAICompatEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return e.base.embedOne(ctx, text)
}

func (e *openAICompatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.base.embed(ctx, texts)
}

func (e *openAICompatEmbedder) Dimensions() int { return e.base.dims.get() }
func (e *openAICompatEmbedder) Model() string   { return e.base.cfg.Model }

type lmStudioEmbedder struct {
	base *openAICompatClient
}

func (e *lmStudioEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return e.base.embedOne(ctx, text)
}

func (e *lmStudioEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.base.embed(ctx, texts)
}

func (e *lmStudioEmbedder) Dimensions() int { return e.base.dims.get() }
func (e *lmStudioEmbedder) Model() string   { return e.base.cfg.Model }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAICompatClient) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *openAICompatClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	}

	respBody, err := c.doPost(ctx, c.pathPrefix+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	// Servers may answer out of order; place each vector by its index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	if err := c.dims.check(embeddings); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// transient reports whether a response status is worth another attempt.
func transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// attemptError is one failed POST. retry is false for errors another
// attempt cannot fix.
type attemptError struct {
	err        error
	retry      bool
	status     int
	retryAfter time.Duration
}

// doPost sends body as JSON to path and returns the 200 response body.
// Transport errors and transient statuses are retried up to maxRetries
// times with exponential backoff; a 429 waits at least rateLimitDelay or
// the server's Retry-After, whichever is longer.
func (c *openAICompatClient) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := c.cfg.BaseURL + path

	var last *attemptError
	for attempt := 0; ; attempt++ {
		out, aerr := c.postOnce(ctx, url, payload)
		if aerr == nil {
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last = aerr
		if !aerr.retry {
			return nil, aerr.err
		}
		if attempt == maxRetries {
			break
		}

		wait := c.backoff(attempt, aerr)
		slog.Warn("embed: retrying request",
			"url", url,
			"attempt", attempt+1,
			"status", aerr.status,
			"delay", wait,
			"error", aerr.err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", last.err)
}

func (c *openAICompatClient) postOnce(ctx context.Context, url string, payload []byte) ([]byte, *attemptError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &attemptError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("request to %s failed: %w", url, err), retry: true}
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("reading response body: %w", err), retry: true, status: resp.StatusCode}
	}
	if resp.StatusCode == http.StatusOK {
		return out, nil
	}

	aerr := &attemptError{
		err:    fmt.Errorf("embedding API error %d: %s", resp.StatusCode, bytes.TrimSpace(out)),
		retry:  transient(resp.StatusCode),
		status: resp.StatusCode,
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		aerr.retryAfter = time.Duration(secs) * time.Second
	}
	return nil, aerr
}

// backoff is the wait before the retry following attempt (0-based).
func (c *openAICompatClient) backoff(attempt int, aerr *attemptError) time.Duration {
	wait := c.retryDelay << attempt
	if aerr.status == http.StatusTooManyRequests {
		wait = max(wait, c.rateLimitDelay<<attempt, aerr.retryAfter)
	}
	return wait
}
