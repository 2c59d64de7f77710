package providers

import (
	"testing"

	"github.com/efebarandurmaz/courtside/internal/llm"
)

func TestRegisterDefaults(t *testing.T) {
	f := llm.NewFactory()
	RegisterDefaults(f)

	want := []string{"anthropic", "custom", "deepseek", "gemini", "groq", "mistral", "ollama", "openai", "together"}
	got := f.Names()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRegisterDefaults_MistralIsOpenAICompatible(t *testing.T) {
	f := llm.NewFactory()
	RegisterDefaults(f)

	p, err := f.Create(llm.ProviderConfig{Provider: "mistral", APIKey: "k", Model: "mistral-small-latest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mistral" {
		t.Fatalf("expected mistral, got %q", p.Name())
	}
}
