package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsheet/internal/common"
	"fieldsheet/internal/document"
	"fieldsheet/internal/llm"
	"fieldsheet/internal/schema"
)

// promptTransport routes responses by the document name embedded in the prompt.
type promptTransport struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(docName string, call int) ([]byte, error)
}

func (p *promptTransport) Call(_ context.Context, pr llm.Prompt) ([]byte, error) {
	name := docNameFromPrompt(pr.User)
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[name]++
	n := p.calls[name]
	p.mu.Unlock()
	return p.respond(name, n)
}

func docNameFromPrompt(user string) string {
	for _, line := range strings.Split(user, "\n") {
		if strings.HasPrefix(line, "Document: ") {
			return strings.TrimPrefix(line, "Document: ")
		}
	}
	return ""
}

func batchSchema(t *testing.T) *schema.CompiledSchema {
	t.Helper()
	cs, err := schema.Compile([]schema.FieldRequest{
		{Name: "vendor", Type: schema.TypeString, Required: true},
		{Name: "total", Type: schema.TypeMoney, Required: true, CurrencyHint: "USD"},
	}, schema.Options{})
	require.NoError(t, err)
	return cs
}

func docs(names ...string) []*document.Context {
	out := make([]*document.Context, len(names))
	for i, n := range names {
		out[i] = &document.Context{Name: n, TextBlocks: []string{"text for " + n}}
	}
	return out
}

func newBatch(t *testing.T, tr llm.Transport, concurrency int) *Batch {
	t.Helper()
	inv := llm.NewInvoker(tr, nil, llm.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, nil)
	return NewBatch(NewDocumentPipeline(inv, nil), nil, concurrency, nil)
}

func TestBatchIsolatesRetryExhaustion(t *testing.T) {
	tr := &promptTransport{respond: func(name string, _ int) ([]byte, error) {
		if name == "doc2.pdf" {
			return nil, &llm.TransportError{Provider: "fake", Status: 503}
		}
		return []byte(`{"vendor":"ACME","total":"$10.00"}`), nil
	}}

	results := newBatch(t, tr, 2).Run(context.Background(), batchSchema(t), docs("doc1.pdf", "doc2.pdf", "doc3.pdf"))

	require.Len(t, results, 3, "exactly one result per document")
	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, StatusOK, results[2].Status)

	assert.Equal(t, StatusFailed, results[1].Status)
	assert.NotEmpty(t, results[1].Err)
	assert.Empty(t, results[1].Values)
	assert.Equal(t, 2, tr.calls["doc2.pdf"], "transient failures retried up to the bound")

	// Rows 1 and 3 are unaffected; row 2 has empty field-value cells.
	table := BuildTable(batchSchema(t), results)
	assert.Equal(t, []string{"document_name", "status", "error", "vendor", "total"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "ACME", table.Rows[0][3])
	assert.Equal(t, "failed", table.Rows[1][1])
	assert.Equal(t, "", table.Rows[1][3])
	assert.Equal(t, "", table.Rows[1][4])
	assert.Equal(t, "10.00 USD", table.Rows[2][4])
}

func TestBatchPreservesInputOrderUnderConcurrency(t *testing.T) {
	var names []string
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("doc%02d.pdf", i))
	}

	tr := &promptTransport{respond: func(name string, _ int) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"vendor":%q,"total":"$1.00"}`, name)), nil
	}}

	results := newBatch(t, tr, 8).Run(context.Background(), batchSchema(t), docs(names...))
	require.Len(t, results, len(names))
	for i, r := range results {
		assert.Equal(t, names[i], r.DocumentName)
		assert.Equal(t, names[i], r.Values["vendor"])
	}
}

func TestBatchRecordsCancelledDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &promptTransport{respond: func(string, int) ([]byte, error) {
		t.Error("transport must not be called after cancellation")
		return nil, nil
	}}

	results := newBatch(t, tr, 2).Run(ctx, batchSchema(t), docs("a.pdf", "b.pdf", "c.pdf"))
	require.Len(t, results, 3, "cancelled documents are recorded, never omitted")
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Contains(t, r.Err, common.ErrCancelled.Error())
	}
}

type panicTransport struct{}

func (panicTransport) Call(context.Context, llm.Prompt) ([]byte, error) {
	panic("transport bug")
}

func TestDocumentPipelineContainsPanics(t *testing.T) {
	inv := llm.NewInvoker(panicTransport{}, nil, llm.RetryConfig{MaxAttempts: 1}, nil)
	pipe := NewDocumentPipeline(inv, nil)

	res := pipe.Run(context.Background(), batchSchema(t), docs("x.pdf")[0])
	require.NotNil(t, res)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Err, "internal pipeline failure")
	assert.Contains(t, res.Err, "transport bug")
}

type stubPreproc struct{}

func (stubPreproc) Preprocess(_ context.Context, path string) (*document.Context, error) {
	if strings.HasSuffix(path, ".docx") {
		return nil, &document.UnsupportedTypeError{Path: path}
	}
	return &document.Context{Name: path, TextBlocks: []string{"ok"}}, nil
}

func TestBatchRunPathsRejectsUnsupportedWithoutAborting(t *testing.T) {
	tr := &promptTransport{respond: func(string, int) ([]byte, error) {
		return []byte(`{"vendor":"ACME","total":"$10.00"}`), nil
	}}
	inv := llm.NewInvoker(tr, nil, llm.RetryConfig{MaxAttempts: 1}, nil)
	b := NewBatch(NewDocumentPipeline(inv, nil), stubPreproc{}, 2, nil)

	results := b.RunPaths(context.Background(), batchSchema(t), []string{"a.pdf", "b.docx", "c.pdf"})
	require.Len(t, results, 3)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Err, "unsupported document type")
	assert.Equal(t, StatusOK, results[2].Status)
}
