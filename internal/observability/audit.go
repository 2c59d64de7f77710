package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventQuestionAnswered AuditEventType = "question.answered"
	AuditEventQuestionFailed   AuditEventType = "question.failed"
	AuditEventSQLRejected      AuditEventType = "sql.rejected"
	AuditEventIndexBuild       AuditEventType = "index.build"
	AuditEventIndexLoad        AuditEventType = "index.load"
)

// AuditEvent is one line of the interactions log.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	RequestID   string         `json:"request_id,omitempty"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger appends JSON lines to a writer.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
}

// DefaultAuditConfig returns the default: disabled, to stdout.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{OutputPath: "stdout"}
}

// NewAuditLogger creates a new audit logger. File targets are opened in
// append mode and their directory is created.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	l := &AuditLogger{sessionID: sessionID, enabled: config.Enabled}
	if !config.Enabled {
		l.writer = io.Discard
		return l, nil
	}

	switch config.OutputPath {
	case "stdout", "":
		l.writer = os.Stdout
	case "stderr":
		l.writer = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		l.writer = f
	}
	return l, nil
}

// NewAuditLoggerTo logs to w. Used by tests and embedding callers.
func NewAuditLoggerTo(w io.Writer, sessionID string) *AuditLogger {
	return &AuditLogger{writer: w, sessionID: sessionID, enabled: true}
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// QuestionRecord describes one routed question.
type QuestionRecord struct {
	RequestID string
	Question  string
	Decision  string
	Answer    string
	Contexts  int
	Duration  time.Duration
	Err       error
}

// LogQuestion records a routed question and its outcome.
func (l *AuditLogger) LogQuestion(_ context.Context, rec QuestionRecord) {
	event := &AuditEvent{
		EventType:  AuditEventQuestionAnswered,
		RequestID:  rec.RequestID,
		Success:    rec.Err == nil,
		DurationMS: rec.Duration.Milliseconds(),
		Message:    "question routed to " + rec.Decision,
		Details: map[string]any{
			"question": rec.Question,
			"decision": rec.Decision,
			"answer":   rec.Answer,
			"contexts": rec.Contexts,
		},
	}
	if rec.Err != nil {
		event.EventType = AuditEventQuestionFailed
		event.ErrorDetail = rec.Err.Error()
	}
	_ = l.Log(event)
}

// LogSQLRejected records a generated statement refused by the safety gate.
func (l *AuditLogger) LogSQLRejected(_ context.Context, question, statement string, reason error) {
	_ = l.Log(&AuditEvent{
		EventType:   AuditEventSQLRejected,
		Success:     false,
		Message:     "generated statement rejected",
		ErrorDetail: reason.Error(),
		Details: map[string]any{
			"question":  question,
			"statement": statement,
		},
	})
}

// LogIndexBuild records an index build.
func (l *AuditLogger) LogIndexBuild(_ context.Context, documents, chunks int, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType:  AuditEventIndexBuild,
		Success:    err == nil,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("index build: %d documents, %d chunks", documents, chunks),
		Details: map[string]any{
			"documents": documents,
			"chunks":    chunks,
		},
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	_ = l.Log(event)
}

// LogIndexLoad records an index load at startup.
func (l *AuditLogger) LogIndexLoad(_ context.Context, chunks int, err error) {
	event := &AuditEvent{
		EventType: AuditEventIndexLoad,
		Success:   err == nil,
		Message:   fmt.Sprintf("index load: %d chunks", chunks),
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	_ = l.Log(event)
}

// Close closes the underlying file, if any.
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	if f, ok := l.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}
