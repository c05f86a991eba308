package llm

import (
	"context"
	"time"
)

// Attachment is one image attached to a prompt, pre-encoded as a data URL.
type Attachment struct {
	MIMEType string
	DataURL  string
}

// Prompt is the structured payload sent to the model for one document.
// Built deterministically; identical inputs produce an identical Prompt.
type Prompt struct {
	System      string
	User        string
	SchemaJSON  map[string]any
	Attachments []Attachment
}

// Transport performs one raw model call. Provider-agnostic; implementations
// return the model's structured text content and classify provider failures
// into the error types in errors.go.
type Transport interface {
	Call(ctx context.Context, p Prompt) ([]byte, error)
}

// AuditEntry records one model call attempt: the request shape and either the
// response or the error. Redaction, when enabled, happens at persistence time.
type AuditEntry struct {
	RequestID string
	Attempt   int
	Prompt    string
	Response  string
	Error     string
	Timestamp time.Time
	Redacted  bool
}

// Recorder receives one entry per model call attempt.
type Recorder interface {
	Record(e AuditEntry)
}

// NopRecorder discards entries.
type NopRecorder struct{}

func (NopRecorder) Record(AuditEntry) {}
