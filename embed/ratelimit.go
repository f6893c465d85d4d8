package embed

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited decorates an Embedder with a client-side request budget.
// A full incremental scan can issue thousands of embedding calls back to
// back; the limiter spreads them out so a shared embedding service is not
// saturated by a single pipeline run.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

var _ Embedder = (*RateLimited)(nil)

// NewRateLimited creates a rate-limiting decorator around inner.
// requestsPerSecond <= 0 disables limiting and delegates directly.
func NewRateLimited(inner Embedder, requestsPerSecond float64) *RateLimited {
	r := &RateLimited{inner: inner}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return r
}

// EmbedText waits for a request token, then delegates to the inner embedder.
func (r *RateLimited) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedText(ctx, text)
}

// EmbedTexts waits for a request token, then delegates to the inner embedder.
// A batch counts as one request regardless of its size.
func (r *RateLimited) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedTexts(ctx, texts)
}

func (r *RateLimited) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
