// Package openai implements llm.Provider for OpenAI-compatible chat and
// embedding APIs. Mistral, Groq, Ollama and friends all speak this dialect.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/courtside/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements llm.Provider on top of go-openai.
type Client struct {
	name       string
	model      string
	embedModel string
	baseURL    string
	api        *goopenai.Client
}

// New creates an OpenAI-compatible provider. name is what Name() reports,
// e.g. "mistral" when baseURL points at api.mistral.ai.
func New(name, apiKey, model, baseURL, embedModel string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if name == "" {
		name = "openai"
	}
	if embedModel == "" {
		embedModel = string(goopenai.SmallEmbedding3)
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		name:       name,
		model:      model,
		embedModel: embedModel,
		baseURL:    baseURL,
		api:        goopenai.NewClientWithConfig(cfg),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	var msgs []goopenai.ChatCompletionMessage
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: prompt.SystemPrompt,
		})
	}
	for _, m := range prompt.Messages {
		// An empty turn would be serialized without content, which some
		// compatible servers reject.
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	}
	if opts != nil {
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
			// go-openai drops a zero temperature (omitempty).
			if req.Temperature == 0 {
				req.Temperature = math.SmallestNonzeroFloat32
			}
		}
		if opts.TopP != nil {
			req.TopP = float32(*opts.TopP)
		}
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
		if len(opts.StopSeqs) > 0 {
			req.Stop = opts.StopSeqs
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.apiError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response", c.name)
	}

	return &llm.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		StopReason:   string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", c.apiError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s embeddings: got %d vectors for %d inputs", c.name, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// apiError carries the HTTP status of a rejected call so the retry layer can
// classify it.
func (c *Client) apiError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &llm.APIError{Provider: c.name, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &llm.APIError{Provider: c.name, Status: reqErr.HTTPStatusCode, Message: string(reqErr.Body), Err: err}
	}
	return fmt.Errorf("%s: %w", c.name, err)
}
