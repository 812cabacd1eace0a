package llm

import "context"

// RetryAdapter wraps an Adapter with the backoff policy from Retry.
// Compose it outside a CircuitBreakerAdapter so denied calls fail fast
// instead of burning attempts against an open breaker.
type RetryAdapter struct {
	inner Adapter
	cfg   RetryConfig
}

func NewRetryAdapter(inner Adapter, cfg RetryConfig) *RetryAdapter {
	return &RetryAdapter{inner: inner, cfg: cfg}
}

func (a *RetryAdapter) Name() string { return a.inner.Name() }

func (a *RetryAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	return Retry(ctx, a.cfg, func(ctx context.Context) (Response, error) {
		return a.inner.Generate(ctx, input)
	})
}
