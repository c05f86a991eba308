package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldsheet/internal/common"
	"fieldsheet/internal/document"
	"fieldsheet/internal/llm"
	"fieldsheet/internal/schema"
)

// DocumentPipeline composes prompt building, model invocation, and response
// validation for one document. Nothing escapes its boundary: every document
// yields exactly one Result, whatever fails inside.
type DocumentPipeline struct {
	Invoker *llm.Invoker
	Logger  *slog.Logger
}

func NewDocumentPipeline(inv *llm.Invoker, logger *slog.Logger) *DocumentPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentPipeline{Invoker: inv, Logger: logger}
}

// Run extracts the compiled schema's fields from one document.
func (p *DocumentPipeline) Run(ctx context.Context, cs *schema.CompiledSchema, doc *document.Context) (res *Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error("docpipe.panic", "document", doc.Name, "panic", r)
			res = failedResult(doc.Name, common.NewAppError("PIPELINE_PANIC",
				fmt.Sprintf("internal pipeline failure: %v", r), common.ErrInternal))
		}
	}()

	prompt := llm.BuildPrompt(cs, doc)

	raw, err := p.Invoker.Invoke(ctx, prompt)
	if err != nil {
		p.Logger.Error("docpipe.invoke_failed",
			"document", doc.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return failedResult(doc.Name, err)
	}

	res, err = ValidateResponse(cs, raw, p.Logger)
	if err != nil {
		p.Logger.Error("docpipe.parse_failed",
			"document", doc.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return failedResult(doc.Name, err)
	}
	res.DocumentName = doc.Name

	p.Logger.Info("docpipe.done",
		"document", doc.Name,
		"status", string(res.Status),
		"values", len(res.Values),
		"field_errors", len(res.FieldErrors),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}
