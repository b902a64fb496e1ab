package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// flakyEmbedder fails with err for failures calls, then succeeds.
type flakyEmbedder struct {
	failures int
	err      error
	calls    int
}

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return [][]float32{{1, 2}}, nil
}

// fastRetrying builds a Retrying with a tiny backoff interval so tests
// complete in milliseconds.
func fastRetrying(inner rag.Embedder, maxRetries int) *Retrying {
	r := WithRetries(inner, maxRetries)
	r.initialInterval = time.Millisecond
	return r
}

func Test_Retrying_TransientRetried(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{
		failures: 2,
		err:      &rag.ProviderError{Transient: true, Err: errors.New("rate limited")},
	}
	r := fastRetrying(inner, 4)

	out, err := r.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want 1 vector, got %d", len(out))
	}
	if inner.calls != 3 {
		t.Errorf("want 3 calls (2 failures + success), got %d", inner.calls)
	}
}

func Test_Retrying_PermanentNotRetried(t *testing.T) {
	t.Parallel()

	permErr := &rag.ProviderError{Transient: false, Err: errors.New("bad credentials")}
	inner := &flakyEmbedder{failures: 10, err: permErr}
	r := fastRetrying(inner, 4)

	_, err := r.Embed(context.Background(), []string{"hello"})
	var pe *rag.ProviderError
	if !errors.As(err, &pe) || pe.Transient {
		t.Errorf("want permanent provider error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", inner.calls)
	}
}

func Test_Retrying_MaxRetriesRespected(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{
		failures: 100,
		err:      &rag.ProviderError{Transient: true, Err: errors.New("still down")},
	}
	r := fastRetrying(inner, 2)

	_, err := r.Embed(context.Background(), []string{"hello"})
	if !rag.IsTransient(err) {
		t.Errorf("want transient error after exhausting retries, got %v", err)
	}
	// Initial attempt plus 2 retries.
	if inner.calls != 3 {
		t.Errorf("want 3 calls, got %d", inner.calls)
	}
}

func Test_Retrying_ContextCancellation(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{
		failures: 100,
		err:      &rag.ProviderError{Transient: true, Err: errors.New("slow")},
	}
	r := WithRetries(inner, 10)
	r.initialInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Embed(ctx, []string{"hello"})
	if err == nil {
		t.Fatal("want error after context deadline")
	}
	if inner.calls > 3 {
		t.Errorf("retries must stop at context deadline, got %d calls", inner.calls)
	}
}

func Test_WithRetries_DefaultBound(t *testing.T) {
	t.Parallel()

	r := WithRetries(&flakyEmbedder{}, 0)
	if r.maxRetries != defaultMaxRetries {
		t.Errorf("want default bound %d, got %d", defaultMaxRetries, r.maxRetries)
	}
	if got := WithRetries(&flakyEmbedder{}, 7); got.maxRetries != 7 {
		t.Errorf("want explicit bound 7, got %d", got.maxRetries)
	}
}
