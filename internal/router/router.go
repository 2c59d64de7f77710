// Package router decides, per question, between the structured (SQL) path
// and the retrieval path, and guarantees a normalized response.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/courtside/internal/answer"
	"github.com/efebarandurmaz/courtside/internal/observability"
	"github.com/efebarandurmaz/courtside/internal/prompts"
)

// FailureAnswer replaces any pipeline error or panic.
const FailureAnswer = "Une erreur est survenue lors du traitement."

// ErrClassificationAmbiguous is reported when the classifier output is
// neither SQL nor RAG. The question still goes to the retrieval path.
var ErrClassificationAmbiguous = errors.New("ambiguous classification")

// Decision is the path chosen for a question.
type Decision int

const (
	Retrieval Decision = iota
	Structured
)

func (d Decision) String() string {
	if d == Structured {
		return "SQL"
	}
	return "RAG"
}

// ParseDecision maps raw classifier output to a Decision. Anything but
// SQL or RAG (case and surrounding space ignored) falls back to Retrieval
// with ErrClassificationAmbiguous.
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SQL":
		return Structured, nil
	case "RAG":
		return Retrieval, nil
	default:
		return Retrieval, fmt.Errorf("%w: %q", ErrClassificationAmbiguous, raw)
	}
}

// Pipeline answers a question on one path.
type Pipeline interface {
	Answer(ctx context.Context, question string) (answer.Response, error)
}

// Chatter is the failure-absorbing side of the language model.
type Chatter interface {
	Chat(ctx context.Context, system, user string, temperature float64) string
}

type Router struct {
	classifier Chatter
	structured Pipeline
	retrieval  Pipeline
	audit      *observability.AuditLogger
	logger     *slog.Logger
}

type Option func(*Router)

func WithAudit(a *observability.AuditLogger) Option { return func(r *Router) { r.audit = a } }

func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.logger = l } }

func New(classifier Chatter, structured, retrieval Pipeline, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		structured: structured,
		retrieval:  retrieval,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Classify asks the model which path fits the question. A classifier
// failure surfaces as unparseable text and therefore as Retrieval.
func (r *Router) Classify(ctx context.Context, question string) (Decision, error) {
	raw := r.classifier.Chat(ctx, prompts.Classification, question, 0)
	d, err := ParseDecision(raw)
	if err != nil {
		r.logger.Warn("unexpected classifier output, falling back to retrieval", "output", raw)
		return d, err
	}
	r.logger.Info("question classified", "decision", d.String())
	return d, nil
}

// Route classifies and answers a question. It never fails and never
// panics: pipeline errors and panics become FailureAnswer.
func (r *Router) Route(ctx context.Context, question string) answer.Response {
	return r.RouteRequest(ctx, uuid.NewString(), question)
}

// RouteRequest is Route with a caller-supplied request ID for the audit log.
func (r *Router) RouteRequest(ctx context.Context, requestID, question string) (resp answer.Response) {
	start := time.Now()
	ctx, span := observability.StartRouteSpan(ctx, question)
	span.AddEvent("RECEIVED")

	var (
		decision  Decision
		ambiguous bool
		routeErr  error
	)
	defer func() {
		if p := recover(); p != nil {
			routeErr = fmt.Errorf("panic: %v", p)
			resp = answer.Text(FailureAnswer)
		}
		if routeErr != nil {
			r.logger.Error("routing failed", "decision", decision.String(), "error", routeErr)
			observability.RecordError(span, routeErr)
		}
		resp = resp.Normalize()
		span.AddEvent("RESPONDED")
		span.End()

		dur := time.Since(start)
		observability.Metrics().RecordRoute(decision.String(), ambiguous, routeErr != nil, dur)
		r.audit.LogQuestion(ctx, observability.QuestionRecord{
			RequestID: requestID,
			Question:  question,
			Decision:  decision.String(),
			Answer:    resp.Answer,
			Contexts:  len(resp.Contexts),
			Duration:  dur,
			Err:       routeErr,
		})
	}()

	span.AddEvent("CLASSIFYING")
	decision, err := r.Classify(ctx, question)
	ambiguous = errors.Is(err, ErrClassificationAmbiguous)
	observability.RecordRouteDecision(span, strings.ToUpper(dispatchName(decision)), ambiguous)

	pipeline := r.retrieval
	if decision == Structured {
		pipeline = r.structured
	}
	if pipeline == nil {
		routeErr = fmt.Errorf("no %s pipeline configured", dispatchName(decision))
		return answer.Text(FailureAnswer)
	}
	out, err := pipeline.Answer(ctx, question)
	if err != nil {
		routeErr = err
		return answer.Text(FailureAnswer)
	}
	return out
}

func dispatchName(d Decision) string {
	if d == Structured {
		return "structured"
	}
	return "retrieval"
}
