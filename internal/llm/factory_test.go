package llm

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFactoryCreate_NoProvider(t *testing.T) {
	f := NewFactory()
	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", name, err)
		}
		if p != nil {
			t.Fatalf("%q: expected nil provider", name)
		}
	}
}

func TestFactoryCreate_UnknownProviderListsRegistered(t *testing.T) {
	f := NewFactory()
	f.Register("mistral", func(ProviderConfig) (Provider, error) { return &scriptedProvider{name: "mistral"}, nil })
	f.Register("gemini", func(ProviderConfig) (Provider, error) { return &scriptedProvider{name: "gemini"}, nil })

	_, err := f.Create(ProviderConfig{Provider: "nope"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "[gemini mistral]") {
		t.Fatalf("expected sorted registered names in error, got %v", err)
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	boom := errors.New("constructor failed")
	f.Register("failing", func(ProviderConfig) (Provider, error) { return nil, boom })

	p, err := f.Create(ProviderConfig{Provider: "failing"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped constructor error, got %v", err)
	}
	if p != nil {
		t.Fatal("expected nil provider on error")
	}
}

func TestFactoryCreate_Wrapping(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ProviderConfig
		wantRetry bool
	}{
		{"bare", ProviderConfig{}, false},
		{"timeout only", ProviderConfig{Timeout: 5 * time.Second}, true},
		{"retries", ProviderConfig{MaxRetries: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory()
			inner := &scriptedProvider{name: "inner"}
			f.Register("test", func(ProviderConfig) (Provider, error) { return inner, nil })

			tt.cfg.Provider = "test"
			p, err := f.Create(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			retry, isRetry := p.(*RetryProvider)
			if isRetry != tt.wantRetry {
				t.Fatalf("got %T, wantRetry=%v", p, tt.wantRetry)
			}
			if isRetry && retry.config.MaxRetries != tt.cfg.MaxRetries {
				t.Fatalf("expected %d retries, got %d", tt.cfg.MaxRetries, retry.config.MaxRetries)
			}
		})
	}
}

func TestFactoryCreate_RateLimitInsideRetry(t *testing.T) {
	f := NewFactory()
	f.Register("test", func(ProviderConfig) (Provider, error) { return &scriptedProvider{name: "test"}, nil })

	p, err := f.Create(ProviderConfig{Provider: "test", Timeout: time.Second, RequestsPerMinute: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	retry, ok := p.(*RetryProvider)
	if !ok {
		t.Fatalf("expected RetryProvider, got %T", p)
	}
	if _, ok := retry.inner.(*RateLimitProvider); !ok {
		t.Fatalf("expected rate limiter under retry, got %T", retry.inner)
	}
}

func TestFactoryCreate_TokenBudgetOnly(t *testing.T) {
	f := NewFactory()
	f.Register("test", func(ProviderConfig) (Provider, error) { return &scriptedProvider{name: "test"}, nil })

	p, err := f.Create(ProviderConfig{Provider: "test", TokensPerMinute: 5000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rl, ok := p.(*RateLimitProvider)
	if !ok {
		t.Fatalf("expected RateLimitProvider, got %T", p)
	}
	if rl.cfg.TokensPerMinute != 5000 || rl.cfg.RequestsPerMinute != 0 {
		t.Fatalf("unexpected limits: %+v", rl.cfg)
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()
	if cfg.Provider != "mistral" || cfg.Model != "mistral-small-latest" || cfg.EmbedModel != "mistral-embed" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxRetries != 0 {
		t.Fatalf("question path must not retry by default, got %d", cfg.MaxRetries)
	}
}

func TestKnownProviders_Mistral(t *testing.T) {
	if KnownProviders["mistral"] != "https://api.mistral.ai/v1" {
		t.Fatalf("unexpected mistral url %q", KnownProviders["mistral"])
	}
}
