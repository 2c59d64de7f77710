// Package gemini implements llm.Provider on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/efebarandurmaz/courtside/internal/llm"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Client implements llm.Provider for Gemini models.
type Client struct {
	api        *genai.Client
	model      string
	embedModel string
}

// New creates a Gemini provider using the Gemini API backend.
func New(ctx context.Context, apiKey, model, embedModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{api: api, model: model, embedModel: embedModel}, nil
}

func (c *Client) Name() string { return "gemini" }

// buildContents splits a prompt into the system instruction and the turns.
// Gemini needs at least one turn, so a prompt with only system text sends it
// as the user turn.
func buildContents(prompt *llm.Prompt) (*genai.Content, []*genai.Content) {
	var contents []*genai.Content
	for _, m := range prompt.Messages {
		if m.Content == "" || m.Role == llm.RoleSystem {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	if len(contents) == 0 {
		return nil, genai.Text(prompt.SystemPrompt)
	}
	if prompt.SystemPrompt == "" {
		return nil, contents
	}
	return genai.NewContentFromText(prompt.SystemPrompt, genai.RoleUser), contents
}

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	system, contents := buildContents(prompt)

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts != nil {
		if opts.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
		}
		if opts.TopP != nil {
			cfg.TopP = genai.Ptr(float32(*opts.TopP))
		}
		if opts.MaxTokens != nil {
			cfg.MaxOutputTokens = int32(*opts.MaxTokens)
		}
		cfg.StopSequences = opts.StopSeqs
	}

	result, err := c.api.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, apiError(err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty candidates in response")
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
	}

	resp := &llm.Response{
		Content:    text.String(),
		Model:      c.model,
		StopReason: string(result.Candidates[0].FinishReason),
	}
	if u := result.UsageMetadata; u != nil {
		resp.InputTokens = int(u.PromptTokenCount)
		resp.OutputTokens = int(u.CandidatesTokenCount)
	}
	return resp, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := c.api.Models.EmbedContent(ctx, c.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", apiError(err))
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d inputs", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func apiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &llm.APIError{Provider: "gemini", Status: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
