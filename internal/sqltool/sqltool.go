// Package sqltool answers questions from the relational dataset: the model
// writes a query, the safety gate vets it, the database runs it read-only
// and the model rephrases the rows.
package sqltool

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/courtside/internal/answer"
	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/observability"
	"github.com/efebarandurmaz/courtside/internal/prompts"
	"github.com/efebarandurmaz/courtside/internal/sqldb"
)

const (
	// ExecutionErrorPrefix starts the result text of a statement that
	// failed to run. The text is still passed on to the rephrase step.
	ExecutionErrorPrefix = "ERROR_SQL: "

	failurePrefix = "Erreur lors du traitement SQL : "

	DefaultTopK        = 5
	DefaultTemperature = 0.1
)

// Completer is the error-returning side of the language model.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Database is the relational source.
type Database interface {
	TableInfo(ctx context.Context) (string, error)
	Run(ctx context.Context, stmt string) (*sqldb.Result, error)
}

// Candidate is a generated statement before validation.
type Candidate struct {
	Statement string
}

// Pipeline runs generate, validate, execute and rephrase.
type Pipeline struct {
	llm         Completer
	db          Database
	fewShots    []prompts.FewShot
	topK        int
	temperature float64
	audit       *observability.AuditLogger
	logger      *slog.Logger
}

type Option func(*Pipeline)

func WithFewShots(shots []prompts.FewShot) Option {
	return func(p *Pipeline) { p.fewShots = shots }
}

func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

func WithTemperature(t float64) Option {
	return func(p *Pipeline) { p.temperature = t }
}

func WithAudit(a *observability.AuditLogger) Option {
	return func(p *Pipeline) { p.audit = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(c Completer, db Database, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:         c,
		db:          db,
		fewShots:    prompts.DefaultFewShots(),
		topK:        DefaultTopK,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Answer turns every failure into a French diagnostic answer with no
// contexts. The error result is always nil; it is there to satisfy
// router.Pipeline.
func (p *Pipeline) Answer(ctx context.Context, question string) (answer.Response, error) {
	ctx, span := observability.StartPipelineSpan(ctx, "sql")
	defer span.End()

	cand, err := p.Generate(ctx, question)
	if err != nil {
		observability.RecordError(span, err)
		return p.fail(err), nil
	}

	if err := ValidateSQL(cand.Statement); err != nil {
		observability.Metrics().SQLRejectedTotal.Inc()
		p.audit.LogSQLRejected(ctx, question, cand.Statement, err)
		p.logger.Warn("generated statement rejected", "statement", cand.Statement, "reason", err)
		observability.RecordError(span, err)
		return p.fail(err), nil
	}

	result := p.Execute(ctx, cand.Statement)

	text, err := p.Rephrase(ctx, question, cand.Statement, result)
	if err != nil {
		observability.RecordError(span, err)
		return p.fail(err), nil
	}
	return answer.Text(text), nil
}

func (p *Pipeline) fail(err error) answer.Response {
	p.logger.Error("sql pipeline failed", "error", err)
	return answer.Text(failurePrefix + err.Error())
}

// Generate asks the model for a statement over the live schema.
func (p *Pipeline) Generate(ctx context.Context, question string) (Candidate, error) {
	ctx, span := observability.StartSQLSpan(ctx, "generate")
	defer span.End()

	info, err := p.db.TableInfo(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return Candidate{}, fmt.Errorf("reading schema: %w", err)
	}
	prompt := prompts.Format(prompts.SQL, map[string]string{
		"table_info": info,
		"top_k":      strconv.Itoa(p.topK),
		"few_shots":  prompts.FormatFewShots(p.fewShots),
		"input":      question,
	})

	raw, err := p.llm.Complete(ctx, "", prompt, p.temperature)
	if err != nil {
		observability.RecordError(span, err)
		return Candidate{}, err
	}
	stmt := CleanStatement(raw)
	observability.RecordSQLResult(span, stmt, false)
	p.logger.Debug("generated statement", "statement", stmt)
	return Candidate{Statement: stmt}, nil
}

// CleanStatement strips what models wrap around a query: reasoning tags,
// markdown fences, the SQLQuery: label and anything after a SQLResult:
// label.
func CleanStatement(raw string) string {
	s := llm.StripMarkdownFences(raw)
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "SQLQuery:"))
	if i := strings.Index(s, "SQLResult:"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// Execute runs a validated statement. Execution failures come back as an
// ExecutionErrorPrefix string so the model can explain them.
func (p *Pipeline) Execute(ctx context.Context, stmt string) string {
	ctx, span := observability.StartSQLSpan(ctx, "execute")
	defer span.End()

	res, err := p.db.Run(ctx, stmt)
	if err != nil {
		observability.Metrics().SQLExecErrorsTotal.Inc()
		observability.RecordSQLResult(span, stmt, true)
		p.logger.Warn("statement failed", "statement", stmt, "error", err)
		return ExecutionErrorPrefix + err.Error()
	}
	observability.RecordSQLResult(span, stmt, false)
	return res.String()
}

// Rephrase turns the query result into the final answer.
func (p *Pipeline) Rephrase(ctx context.Context, question, stmt, result string) (string, error) {
	ctx, span := observability.StartSQLSpan(ctx, "rephrase")
	defer span.End()

	prompt := prompts.Format(prompts.Rephrase, map[string]string{
		"question": question,
		"query":    stmt,
		"result":   result,
	})
	text, err := p.llm.Complete(ctx, "", prompt, p.temperature)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}
