package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

// ProviderRateLimiter enforces a minimum delay between requests to the same
// job board provider. Delays may differ per provider kind.
type ProviderRateLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: provider kind
	delayFor func(kind string) time.Duration
}

// NewProviderRateLimiter creates a rate limiter whose per-provider delay is
// resolved by delayFor. All fetchers in one process should share one
// instance so the delay covers every source on the same provider.
func NewProviderRateLimiter(delayFor func(kind string) time.Duration) *ProviderRateLimiter {
	return &ProviderRateLimiter{
		lastCall: make(map[string]time.Time),
		delayFor: delayFor,
	}
}

// Wait blocks until enough time has passed since the last request to the
// given provider. Returns an error if the context is cancelled while waiting.
func (r *ProviderRateLimiter) Wait(ctx context.Context, kind string) error {
	r.mu.Lock()
	last, ok := r.lastCall[kind]
	now := time.Now()

	if !ok {
		// First request for this provider.
		r.lastCall[kind] = now
		r.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(last)
	minDelay := r.delayFor(kind)
	if elapsed >= minDelay {
		r.lastCall[kind] = now
		r.mu.Unlock()
		return nil
	}

	// Need to wait for the remainder.
	remaining := minDelay - elapsed
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", kind, ctx.Err())
	case <-time.After(remaining):
	}

	// Record the actual time after waiting.
	r.mu.Lock()
	r.lastCall[kind] = time.Now()
	r.mu.Unlock()

	return nil
}

// RateLimitedFetcher is a decorator that enforces provider-level rate
// limiting before delegating to the wrapped PostingFetcher.
type RateLimitedFetcher struct {
	inner   model.PostingFetcher
	limiter *ProviderRateLimiter
	kind    string // which provider this fetcher targets
}

// NewRateLimitedFetcher wraps a PostingFetcher with provider-level rate
// limiting. All fetchers targeting the same provider should share the same
// limiter instance.
func NewRateLimitedFetcher(inner model.PostingFetcher, limiter *ProviderRateLimiter, kind string) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
		kind:    kind,
	}
}

// FetchPostings waits for the rate limiter to allow a request, then
// delegates to the wrapped fetcher.
func (f *RateLimitedFetcher) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	if err := f.limiter.Wait(ctx, f.kind); err != nil {
		return nil, err
	}
	return f.inner.FetchPostings(ctx)
}
