package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"fieldsheet/internal/common"
	"fieldsheet/internal/document"
	"fieldsheet/internal/schema"
)

// Batch runs the document pipeline over all documents on a bounded worker
// pool. Documents are independent: one failure never cancels a sibling, and
// results come back in input order regardless of completion order.
type Batch struct {
	Pipeline    *DocumentPipeline
	Preproc     document.Preprocessor
	Concurrency int
	Logger      *slog.Logger
}

func NewBatch(pipe *DocumentPipeline, preproc document.Preprocessor, concurrency int, logger *slog.Logger) *Batch {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{Pipeline: pipe, Preproc: preproc, Concurrency: concurrency, Logger: logger}
}

// Run executes the pipeline for already-preprocessed documents.
func (b *Batch) Run(ctx context.Context, cs *schema.CompiledSchema, docs []*document.Context) []*Result {
	return b.run(ctx, len(docs), func(i int) string { return docs[i].Name }, func(i int) *Result {
		return b.Pipeline.Run(ctx, cs, docs[i])
	})
}

// RunPaths preprocesses and extracts each document path. Preprocessing happens
// inside the worker so an unsupported or unreadable document becomes that
// document's failed Result instead of aborting the batch.
func (b *Batch) RunPaths(ctx context.Context, cs *schema.CompiledSchema, paths []string) []*Result {
	return b.run(ctx, len(paths), func(i int) string { return filepath.Base(paths[i]) }, func(i int) *Result {
		doc, err := b.Preproc.Preprocess(ctx, paths[i])
		if err != nil {
			b.Logger.Error("batch.preprocess_failed", "path", paths[i], "error", err)
			return failedResult(filepath.Base(paths[i]), fmt.Errorf("preprocess: %w", err))
		}
		return b.Pipeline.Run(ctx, cs, doc)
	})
}

func (b *Batch) run(ctx context.Context, n int, name func(int) string, work func(int) *Result) []*Result {
	start := time.Now()
	results := make([]*Result, n)
	idx := make(chan int)

	workers := b.Concurrency
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				// A cancelled run records remaining documents as failed
				// rather than silently omitting them from the table.
				if err := ctx.Err(); err != nil {
					results[i] = failedResult(name(i), fmt.Errorf("%w before extraction: %v", common.ErrCancelled, err))
					continue
				}
				results[i] = work(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)
	wg.Wait()

	var ok, partial, failed int
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusPartial:
			partial++
		default:
			failed++
		}
	}
	b.Logger.Info("batch.done",
		"documents", n, "ok", ok, "partial", partial, "failed", failed,
		"workers", workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results
}
