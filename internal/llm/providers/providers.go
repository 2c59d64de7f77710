// Package providers registers the built-in LLM backends into a factory.
// Both cmd/courtside and cmd/worker call RegisterDefaults.
package providers

import (
	"context"

	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/llm/anthropic"
	"github.com/efebarandurmaz/courtside/internal/llm/gemini"
	"github.com/efebarandurmaz/courtside/internal/llm/openai"
)

// RegisterDefaults registers anthropic, gemini and every OpenAI-compatible
// preset (mistral included) into factory.
func RegisterDefaults(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("gemini", func(c llm.ProviderConfig) (llm.Provider, error) {
		return gemini.New(context.Background(), c.APIKey, c.Model, c.EmbedModel)
	})

	for _, name := range []string{"mistral", "openai", "groq", "ollama", "together", "deepseek", "custom"} {
		name := name
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = llm.KnownProviders[name]
			}
			return openai.New(name, c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}
}
