package embedder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// defaultMaxRetries is the bounded attempt count for transient embedding
// failures. With the default exponential backoff this keeps a fully failing
// provider call under roughly half a minute of total wait.
const defaultMaxRetries = 4

// Retrying decorates a rag.Embedder with bounded exponential backoff for
// transient provider failures (rate limits, timeouts, 5xx). Permanent
// failures (bad credentials, malformed input) and context cancellation
// propagate immediately without further attempts.
type Retrying struct {
	// inner is the embedder whose calls are retried.
	inner rag.Embedder

	// maxRetries bounds the number of retry attempts after the first call.
	maxRetries uint64

	// initialInterval seeds the exponential backoff; exposed for tests.
	initialInterval time.Duration
}

// WithRetries wraps inner with the default retry policy. maxRetries <= 0
// selects the default bound.
func WithRetries(inner rag.Embedder, maxRetries int) *Retrying {
	r := &Retrying{
		inner:           inner,
		maxRetries:      defaultMaxRetries,
		initialInterval: backoff.DefaultInitialInterval,
	}
	if maxRetries > 0 {
		r.maxRetries = uint64(maxRetries)
	}
	return r
}

// Embed calls the wrapped embedder, retrying transient failures with
// exponential backoff until the attempt bound or context deadline is hit.
func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval

	op := func() error {
		vectors, err := r.inner.Embed(ctx, texts)
		if err != nil {
			if rag.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = vectors
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}
