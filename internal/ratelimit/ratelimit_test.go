package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

func fixedDelay(d time.Duration) func(string) time.Duration {
	return func(string) time.Duration { return d }
}

func TestWait_FirstRequestImmediate(t *testing.T) {
	r := NewProviderRateLimiter(fixedDelay(time.Hour))

	start := time.Now()
	if err := r.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("first request should not wait")
	}
}

func TestWait_EnforcesDelayPerProvider(t *testing.T) {
	r := NewProviderRateLimiter(fixedDelay(50 * time.Millisecond))
	ctx := context.Background()

	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second request waited only %v", elapsed)
	}

	// A different provider is not throttled by greenhouse's last call.
	start = time.Now()
	if err := r.Wait(ctx, "lever"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("other provider waited %v", elapsed)
	}
}

func TestWait_PerKindDelays(t *testing.T) {
	delays := map[string]time.Duration{"greenhouse": 0, "lever": 50 * time.Millisecond}
	r := NewProviderRateLimiter(func(kind string) time.Duration { return delays[kind] })
	ctx := context.Background()

	r.Wait(ctx, "greenhouse")
	r.Wait(ctx, "lever")

	start := time.Now()
	r.Wait(ctx, "greenhouse")
	if time.Since(start) > 30*time.Millisecond {
		t.Error("zero-delay provider should not wait")
	}

	start = time.Now()
	r.Wait(ctx, "lever")
	if time.Since(start) < 40*time.Millisecond {
		t.Error("lever override not enforced")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	r := NewProviderRateLimiter(fixedDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := r.Wait(ctx, "greenhouse"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

type stubFetcher struct {
	calls int
}

func (s *stubFetcher) FetchPostings(_ context.Context) ([]model.RawPosting, error) {
	s.calls++
	return []model.RawPosting{{ExternalID: "1"}}, nil
}

func TestRateLimitedFetcher_Delegates(t *testing.T) {
	stub := &stubFetcher{}
	limiter := NewProviderRateLimiter(fixedDelay(0))
	f := NewRateLimitedFetcher(stub, limiter, "ashby")

	postings, err := f.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 || stub.calls != 1 {
		t.Fatalf("delegation failed: postings=%d calls=%d", len(postings), stub.calls)
	}
}
