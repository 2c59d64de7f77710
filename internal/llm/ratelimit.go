package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig bounds how fast a provider is called. Zero fields are
// unlimited.
type RateLimitConfig struct {
	// RequestsPerMinute refills a request bucket holding at most Burst calls.
	RequestsPerMinute int
	Burst             int
	// TokensPerMinute caps the prompt plus completion tokens that Complete
	// reports within a one-minute window. Embedding batches are not counted.
	TokensPerMinute int
}

// RateLimitProvider delays calls until the configured budget allows them.
type RateLimitProvider struct {
	inner Provider
	cfg   RateLimitConfig
	now   func() time.Time

	mu        sync.Mutex
	allowance float64
	last      time.Time
	window    time.Time
	requests  int
	tokens    int
}

// NewRateLimitProvider wraps inner with cfg.
func NewRateLimitProvider(inner Provider, cfg RateLimitConfig) *RateLimitProvider {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	now := time.Now()
	return &RateLimitProvider{
		inner:     inner,
		cfg:       cfg,
		now:       time.Now,
		allowance: float64(cfg.Burst),
		last:      now,
		window:    now,
	}
}

func (r *RateLimitProvider) Name() string { return r.inner.Name() }

func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	resp, err := r.inner.Complete(ctx, prompt, opts)
	if err == nil && resp != nil {
		r.mu.Lock()
		r.tokens += resp.InputTokens + resp.OutputTokens
		r.mu.Unlock()
	}
	return resp, err
}

// Embed counts one request per batch.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

func (r *RateLimitProvider) acquire(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait == 0 {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// reserve takes one request slot and returns 0, or returns how long to wait
// before asking again.
func (r *RateLimitProvider) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.window) >= time.Minute {
		r.window = now
		r.requests = 0
		r.tokens = 0
	}
	if r.cfg.TokensPerMinute > 0 && r.tokens >= r.cfg.TokensPerMinute {
		return r.window.Add(time.Minute).Sub(now)
	}

	if r.cfg.RequestsPerMinute > 0 {
		perNano := float64(r.cfg.RequestsPerMinute) / float64(time.Minute)
		r.allowance = min(float64(r.cfg.Burst), r.allowance+float64(now.Sub(r.last))*perNano)
		r.last = now
		if r.allowance < 1 {
			return max(time.Duration((1-r.allowance)/perNano), time.Millisecond)
		}
		r.allowance--
	}
	r.requests++
	return 0
}

// RateLimitStats describes the current one-minute window.
type RateLimitStats struct {
	RequestsInWindow int
	TokensInWindow   int
	WindowStart      time.Time
}

func (r *RateLimitProvider) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateLimitStats{
		RequestsInWindow: r.requests,
		TokensInWindow:   r.tokens,
		WindowStart:      r.window,
	}
}

// WithRateLimit wraps p unless cfg is unlimited.
func WithRateLimit(p Provider, cfg RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	if cfg.RequestsPerMinute <= 0 && cfg.TokensPerMinute <= 0 {
		return p
	}
	return NewRateLimitProvider(p, cfg)
}
