// Package retrieval answers questions from the document index: search,
// build a grounded prompt, ask the model.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/efebarandurmaz/courtside/internal/answer"
	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/observability"
	"github.com/efebarandurmaz/courtside/internal/prompts"
	"github.com/efebarandurmaz/courtside/internal/vector"
)

const (
	// NoInformationAnswer is returned when the index has nothing to offer.
	NoInformationAnswer = "Je n’ai trouvé aucune information pertinente dans les documents."

	// ContextSeparator sits between chunk texts in the prompt.
	ContextSeparator = "\n\n---\n\n"

	DefaultK           = 5
	DefaultTemperature = 0.1
)

// Searcher finds the chunks closest to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vector.Hit, error)
}

// Chatter is the failure-absorbing side of the language model.
type Chatter interface {
	Chat(ctx context.Context, system, user string, temperature float64) string
}

type Pipeline struct {
	index       Searcher
	llm         Chatter
	k           int
	temperature float64
	logger      *slog.Logger
}

type Option func(*Pipeline)

func WithK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.k = k
		}
	}
}

func WithTemperature(t float64) Option { return func(p *Pipeline) { p.temperature = t } }

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func New(index Searcher, c Chatter, opts ...Option) *Pipeline {
	p := &Pipeline{
		index:       index,
		llm:         c,
		k:           DefaultK,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Answer never returns an error. A failed search answers with
// llm.ErrorAnswer and no contexts; no hits answers NoInformationAnswer.
func (p *Pipeline) Answer(ctx context.Context, question string) (answer.Response, error) {
	ctx, span := observability.StartPipelineSpan(ctx, "retrieval")
	defer span.End()

	hits, err := p.index.Search(ctx, question, p.k)
	if err != nil {
		observability.RecordError(span, err)
		p.logger.Error("search failed", "error", err)
		return answer.Text(llm.ErrorAnswer), nil
	}
	observability.RecordRetrieval(span, p.k, len(hits))
	if len(hits) == 0 {
		observability.Metrics().RetrievalEmptyTotal.Inc()
		return answer.Text(NoInformationAnswer), nil
	}

	contexts := make([]string, len(hits))
	for i, h := range hits {
		contexts[i] = h.Chunk.Text
	}
	prompt := prompts.Format(prompts.RAG, map[string]string{
		"context":  strings.Join(contexts, ContextSeparator),
		"question": question,
	})

	text := p.llm.Chat(ctx, prompt, "", p.temperature)
	return answer.WithContexts(text, contexts), nil
}
