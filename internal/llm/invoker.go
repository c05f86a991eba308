package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RetryConfig bounds the invoker's retry behavior.
type RetryConfig struct {
	MaxAttempts int           // default 4
	BaseDelay   time.Duration // default 2s, doubled per attempt
	MaxDelay    time.Duration // default 60s
}

func (c *RetryConfig) fill() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
}

// retryState is the explicit state of one invocation.
type retryState int

const (
	stateAttempting retryState = iota
	stateBackingOff
	stateSucceeded
	stateExhausted
)

// Invoker calls the model transport with bounded retries, exponential backoff,
// and rate-limit handling. Every attempt is recorded to the audit recorder.
type Invoker struct {
	transport Transport
	rec       Recorder
	cfg       RetryConfig
	log       *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error // swapped in tests
}

func NewInvoker(t Transport, rec Recorder, cfg RetryConfig, logger *slog.Logger) *Invoker {
	cfg.fill()
	if rec == nil {
		rec = NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{transport: t, rec: rec, cfg: cfg, log: logger, sleep: sleepCtx}
}

// Invoke runs the retry state machine for one prompt. Transient failures back
// off and retry; non-transient failures and exhaustion surface as a single
// InvocationError carrying the last cause.
func (inv *Invoker) Invoke(ctx context.Context, p Prompt) ([]byte, error) {
	rid := uuid.New().String()
	promptJSON := auditPrompt(p)
	start := time.Now()

	var (
		raw     []byte
		lastErr error
		attempt int
		delay   time.Duration
	)

	state := stateAttempting
	for state != stateSucceeded && state != stateExhausted {
		switch state {
		case stateAttempting:
			attempt++
			raw, lastErr = inv.transport.Call(ctx, p)
			inv.record(rid, attempt, promptJSON, raw, lastErr)

			if lastErr == nil {
				state = stateSucceeded
				break
			}
			if ctx.Err() != nil {
				lastErr = fmt.Errorf("%w (last attempt: %v)", ctx.Err(), lastErr)
				state = stateExhausted
				break
			}
			if !transient(lastErr) || attempt >= inv.cfg.MaxAttempts {
				state = stateExhausted
				break
			}
			delay = inv.nextDelay(attempt, lastErr)
			state = stateBackingOff

		case stateBackingOff:
			inv.log.Warn("invoke.backoff",
				"req_id", rid, "attempt", attempt, "delay", delay.String(), "error", lastErr)
			if err := inv.sleep(ctx, delay); err != nil {
				lastErr = fmt.Errorf("%w (last attempt: %v)", err, lastErr)
				state = stateExhausted
				break
			}
			state = stateAttempting
		}
	}

	if state == stateExhausted {
		inv.log.Error("invoke.exhausted",
			"req_id", rid, "attempts", attempt, "error", lastErr,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, &InvocationError{Attempts: attempt, Cause: lastErr}
	}

	inv.log.Info("invoke.ok",
		"req_id", rid, "attempts", attempt, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())
	return raw, nil
}

// nextDelay applies exponential backoff, bounded by MaxDelay. A rate-limited
// attempt never waits less than the provider's Retry-After.
func (inv *Invoker) nextDelay(attempt int, err error) time.Duration {
	delay := inv.cfg.BaseDelay << (attempt - 1)
	if delay > inv.cfg.MaxDelay {
		delay = inv.cfg.MaxDelay
	}
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > delay {
		delay = rl.RetryAfter
	}
	return delay
}

func (inv *Invoker) record(rid string, attempt int, prompt string, raw []byte, err error) {
	e := AuditEntry{
		RequestID: rid,
		Attempt:   attempt,
		Prompt:    prompt,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	} else {
		e.Response = string(raw)
	}
	inv.rec.Record(e)
}

// auditPrompt renders the request shape for the audit log. Attachment payloads
// are summarized, not inlined.
func auditPrompt(p Prompt) string {
	atts := make([]map[string]any, 0, len(p.Attachments))
	for _, a := range p.Attachments {
		atts = append(atts, map[string]any{"mime_type": a.MIMEType, "bytes": len(a.DataURL)})
	}
	b, err := json.Marshal(map[string]any{
		"system":      p.System,
		"user":        p.User,
		"schema":      p.SchemaJSON,
		"attachments": atts,
	})
	if err != nil {
		return fmt.Sprintf("{\"marshal_error\":%q}", err.Error())
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
