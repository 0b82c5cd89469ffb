package embed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bbiangul/lexgraph/graph"
)

const (
	DefaultBatchSize  = 64
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Item is one text to embed.
type Item struct {
	ID   int64
	Text string
}

// Sink receives each successfully embedded batch. ids and vecs are
// index-aligned.
type Sink func(ctx context.Context, ids []int64, vecs [][]float32) error

// BatcherOptions tunes a Batcher. Zero values pick the defaults.
type BatcherOptions struct {
	BatchSize  int
	MaxRetries int // per backend call; negative disables retries
	RetryDelay time.Duration

	// OnBatch is called after every successful backend call.
	OnBatch func(size int, elapsed time.Duration)
	// OnRetry is called before every retry.
	OnRetry func()
}

// Result summarises a Batcher run.
type Result struct {
	Embedded int
	Skipped  int
	Batches  int
	Splits   int
}

// Batcher embeds a node set through an Embedder, shortest texts first.
// A failed batch is halved and both halves retried until a single text is
// left; a single text that still fails aborts the run.
type Batcher struct {
	emb  Embedder
	opts BatcherOptions
	dim  int
	res  Result
}

// NewBatcher returns a Batcher for e.
func NewBatcher(e Embedder, opts BatcherOptions) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Batcher{emb: e, opts: opts}
}

// ItemsFromNodes returns the embeddable nodes of set: synthetic grouping
// nodes are left out.
func ItemsFromNodes(set *graph.NodeSet) []Item {
	items := make([]Item, 0, len(set.Nodes))
	for _, n := range set.Nodes {
		if n.Synthetic {
			continue
		}
		items = append(items, Item{ID: n.ID, Text: set.Texts[n.ID]})
	}
	return items
}

// Run embeds items and hands every batch to sink. Blank texts are skipped
// and counted.
func (b *Batcher) Run(ctx context.Context, items []Item, sink Sink) (Result, error) {
	b.res = Result{}
	b.dim = b.emb.Dimensions()

	work := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			b.res.Skipped++
			continue
		}
		work = append(work, it)
	}
	slices.SortStableFunc(work, func(a, c Item) int {
		if n := cmp.Compare(len(a.Text), len(c.Text)); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, c.ID)
	})
	logLengths(work)

	total := (len(work) + b.opts.BatchSize - 1) / b.opts.BatchSize
	for i := 0; i < len(work); i += b.opts.BatchSize {
		batch := work[i:min(i+b.opts.BatchSize, len(work))]
		if err := b.embed(ctx, batch, sink); err != nil {
			return b.res, err
		}
		slog.Debug("embed: batch done",
			"batch", i/b.opts.BatchSize+1,
			"of", total,
			"embedded", b.res.Embedded,
		)
	}

	slog.Info("embed: finished",
		"model", b.emb.Model(),
		"embedded", b.res.Embedded,
		"skipped", b.res.Skipped,
		"calls", b.res.Batches,
		"splits", b.res.Splits,
	)
	return b.res, nil
}

// Dimensions returns the vector length seen during the last run.
func (b *Batcher) Dimensions() int { return b.dim }

func (b *Batcher) embed(ctx context.Context, batch []Item, sink Sink) error {
	texts := make([]string, len(batch))
	for i, it := range batch {
		texts[i] = it.Text
	}

	start := time.Now()
	vecs, err := b.withRetry(ctx, texts)
	if err == nil {
		if b.opts.OnBatch != nil {
			b.opts.OnBatch(len(batch), time.Since(start))
		}
		b.res.Batches++
		if err := b.checkDims(batch, vecs); err != nil {
			return err
		}
		ids := make([]int64, len(batch))
		for i, it := range batch {
			ids[i] = it.ID
		}
		if err := sink(ctx, ids, vecs); err != nil {
			return fmt.Errorf("embed: sink: %w", err)
		}
		b.res.Embedded += len(batch)
		return nil
	}

	if isFatal(ctx, err) {
		return err
	}
	if len(batch) == 1 {
		return fmt.Errorf("%w: node %d (%d bytes): %w", ErrEmbeddingFailed, batch[0].ID, len(batch[0].Text), err)
	}

	b.res.Splits++
	half := len(batch) / 2
	slog.Warn("embed: batch failed, splitting",
		"size", len(batch),
		"halves", []int{half, len(batch) - half},
		"error", err,
	)
	if err := b.embed(ctx, batch[:half], sink); err != nil {
		return err
	}
	return b.embed(ctx, batch[half:], sink)
}

// withRetry calls the backend with exponential backoff between attempts.
func (b *Batcher) withRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if b.opts.OnRetry != nil {
				b.opts.OnRetry()
			}
			delay := b.opts.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vecs, err := b.emb.EmbedBatch(ctx, texts)
		if err == nil {
			if len(vecs) != len(texts) {
				return nil, fmt.Errorf("%w: backend returned %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
			}
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isFatal(ctx, err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (b *Batcher) checkDims(batch []Item, vecs [][]float32) error {
	for i, v := range vecs {
		if b.dim == 0 {
			b.dim = len(v)
		}
		if len(v) != b.dim {
			return fmt.Errorf("%w: node %d has %d values, want %d", ErrDimensionMismatch, batch[i].ID, len(v), b.dim)
		}
	}
	return nil
}

// isFatal reports errors no retry or split can fix.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrDimensionMismatch)
}

// logLengths logs the text-length distribution of sorted items.
func logLengths(sorted []Item) {
	if len(sorted) == 0 {
		slog.Info("embed: nothing to embed")
		return
	}
	var sum int
	for _, it := range sorted {
		sum += len(it.Text)
	}
	pct := func(p int) int {
		return len(sorted[(len(sorted)-1)*p/100].Text)
	}
	slog.Info("embed: text lengths",
		"count", len(sorted),
		"min", len(sorted[0].Text),
		"p50", pct(50),
		"p90", pct(90),
		"p99", pct(99),
		"max", len(sorted[len(sorted)-1].Text),
		"mean", sum/len(sorted),
	)
}
