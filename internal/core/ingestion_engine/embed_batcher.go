package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/flowdesk/internal/core"
)

// EmbedBatcher embeds chunks in contiguous, bounded batches and reassembles the
// vectors in input order.
type EmbedBatcher struct {
	provider    core.EmbeddingProvider
	batchSize   int
	concurrency int
	dim         int
	limiter     *rate.Limiter
	newBackOff  func() backoff.BackOff
}

func NewEmbedBatcher(provider core.EmbeddingProvider, cfg IngestConfig) *EmbedBatcher {
	cfg = cfg.withDefaults()

	b := &EmbedBatcher{
		provider:    provider,
		batchSize:   cfg.EmbedBatchSize,
		concurrency: cfg.EmbedConcurrency,
		dim:         cfg.EmbedDim,
		newBackOff:  defaultBackOff,
	}
	if cfg.EmbedRatePerSec > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSec), 1)
	}
	return b
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// EmbedAll returns one vector per chunk, vector i belonging to chunk i. The
// first failing batch aborts the whole call and nothing is returned.
func (b *EmbedBatcher) EmbedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batches := (len(chunks) + b.batchSize - 1) / b.batchSize
	results := make([][][]float32, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i := 0; i < batches; i++ {
		start := i * b.batchSize
		end := min(start+b.batchSize, len(chunks))
		batch := chunks[start:end]

		g.Go(func() error {
			// An earlier batch already failed; do not spend another request.
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs, err := b.embedBatch(gctx, batch)
			if err != nil {
				return &EmbeddingError{Batch: i, Err: err}
			}
			results[i] = vecs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(chunks))
	for _, vecs := range results {
		out = append(out, vecs...)
	}
	return out, nil
}

// embedBatch issues one provider request, retrying only rate-limit failures.
func (b *EmbedBatcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32

	operation := func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		v, err := b.provider.EmbedTexts(ctx, batch)
		if err != nil {
			if errors.Is(err, core.ErrRateLimited) {
				return err
			}
			return backoff.Permanent(err)
		}
		vecs = v
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b.newBackOff(), ctx)); err != nil {
		return nil, err
	}

	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(batch))
	}
	if b.dim > 0 {
		for i, v := range vecs {
			if len(v) != b.dim {
				return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), b.dim)
			}
		}
	}
	return vecs, nil
}
