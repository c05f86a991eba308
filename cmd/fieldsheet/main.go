package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldsheet/internal/audit"
	"fieldsheet/internal/common"
	"fieldsheet/internal/document"
	"fieldsheet/internal/export"
	"fieldsheet/internal/llm"
	"fieldsheet/internal/llm/openai"
	"fieldsheet/internal/pipeline"
	"fieldsheet/internal/schema"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		fieldsPath   = flag.String("fields", "", "path to a JSON file of field requests")
		instructions = flag.String("schema", "", "free-form field instructions, refined via the model")
		percentScale = flag.String("percent-scale", "", "percent normalization scale ('0-1' or '0-100')")
		out          = flag.String("out", "extractions.xlsx", "output XLSX file path")
		concurrency  = flag.Int("concurrency", 0, "max documents extracted in parallel")
		timeout      = flag.Duration("timeout", 0, "run-level timeout (e.g. 10m); 0 = none")
		auditDB      = flag.String("audit-db", "", "path to the SQLite audit log database")
	)
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		printError("Error: at least one document path is required\n")
		os.Exit(1)
	}
	if (*fieldsPath == "") == (*instructions == "") {
		printError("Error: exactly one of --fields or --schema is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *percentScale != "" {
		cfg.Batch.PercentScale = *percentScale
	}
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}
	if *auditDB != "" {
		cfg.Audit.DBPath = *auditDB
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	// Audit recorder: SQLite-backed when a path is configured, no-op otherwise.
	var recorder llm.Recorder = llm.NopRecorder{}
	if cfg.Audit.DBPath != "" {
		redactor, err := audit.NewRedactor(cfg.Audit.RedactPatterns)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		store, err := audit.Open(cfg.Audit.DBPath, redactor, logger)
		if err != nil {
			printError("Error: open audit db: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("audit close error", "error", err)
			}
		}()
		recorder = store
	}

	transport := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	invoker := llm.NewInvoker(transport, recorder, llm.RetryConfig{
		MaxAttempts: cfg.LLM.MaxAttempts,
	}, logger)

	cs, err := compileSchema(ctx, invoker, *fieldsPath, *instructions, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("schema compiled", "fields", cs.Len())

	preproc := document.Dispatch{
		".pdf": document.NewPDFPreprocessor(document.PDFConfig{
			MaxPages:         cfg.Preproc.MaxPages,
			ArtifactCacheDir: cfg.Preproc.ArtifactCacheDir,
		}, logger),
	}

	batch := pipeline.NewBatch(
		pipeline.NewDocumentPipeline(invoker, logger),
		preproc,
		cfg.Batch.Concurrency,
		logger,
	)
	results := batch.RunPaths(ctx, cs, paths)

	table := pipeline.BuildTable(cs, results)
	if err := export.WriteXLSX(table, *out, logger); err != nil {
		printError("Error: write output: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		detail := "ok"
		if r.Err != "" {
			detail = r.Err
		} else if len(r.FieldErrors) > 0 {
			detail = fmt.Sprintf("%d field error(s)", len(r.FieldErrors))
		}
		fmt.Printf("%s: %s (%s)\n", r.DocumentName, r.Status, detail)
	}
	fmt.Printf("Wrote results to %s\n", *out)
}

func compileSchema(ctx context.Context, invoker *llm.Invoker, fieldsPath, instructions string, cfg *common.Config, logger *slog.Logger) (*schema.CompiledSchema, error) {
	opts := schema.Options{PercentScale: schema.PercentScale(cfg.Batch.PercentScale)}

	if fieldsPath != "" {
		b, err := os.ReadFile(fieldsPath)
		if err != nil {
			return nil, common.WrapError(err, "read fields file")
		}
		var reqs []schema.FieldRequest
		if err := json.Unmarshal(b, &reqs); err != nil {
			return nil, common.WrapError(err, "decode fields file")
		}
		return schema.Compile(reqs, opts)
	}

	start := time.Now()
	refiner := llm.NewInstructionRefiner(invoker, logger)
	cs, err := schema.CompileInstructions(ctx, refiner, instructions, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("schema refined from instructions", "elapsed_ms", time.Since(start).Milliseconds())
	return cs, nil
}
