package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/attest/internal/documents"
	"github.com/JaimeStill/attest/internal/frameworks"
)

// EvaluatorConfig bounds retries and per-call time.
type EvaluatorConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Jitter      bool
	Timeout     time.Duration
}

// Evaluator wraps a Client with retries and output validation. It never
// returns an error: an evaluation that cannot be obtained becomes a failed
// outcome.
type Evaluator struct {
	client Client
	cfg    EvaluatorConfig
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. MaxAttempts below one is raised to one.
func NewEvaluator(client Client, cfg EvaluatorConfig, logger *slog.Logger) *Evaluator {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &Evaluator{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Evaluate produces the outcome for one control.
//
// Each attempt runs detached from ctx cancellation, bounded by the
// configured timeout, so an in-flight call finishes when the job is
// cancelled. Once ctx is done no further attempt starts.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	instructions string,
	control frameworks.Control,
	pc *documents.PreparedContext,
) ControlOutcome {
	req := Request{
		Instructions: instructions,
		Control:      control,
		Context:      pc.Text,
	}

	var lastErr error
	attempts := 0
	for attempts < e.cfg.MaxAttempts {
		if attempts > 0 {
			if err := sleep(ctx, e.backoff()); err != nil {
				break
			}
		}
		attempts++

		outcome, err := e.attempt(ctx, req, pc)
		if err == nil {
			outcome.Attempts = attempts
			return outcome
		}

		lastErr = err
		e.logger.WarnContext(ctx, "control evaluation attempt failed",
			"control", control.Code,
			"attempt", attempts,
			"error", err,
		)

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = context.Cause(ctx)
	}
	return failedOutcome(control, attempts, lastErr)
}

func (e *Evaluator) attempt(ctx context.Context, req Request, pc *documents.PreparedContext) (ControlOutcome, error) {
	callCtx := context.WithoutCancel(ctx)
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, e.cfg.Timeout)
		defer cancel()
	}

	eval, err := e.client.Evaluate(callCtx, req)
	if err != nil {
		return ControlOutcome{}, err
	}
	if eval == nil {
		return ControlOutcome{}, fmt.Errorf("%w: empty evaluation", ErrMalformedOutcome)
	}

	return normalize(req.Control, eval, pc)
}

func (e *Evaluator) backoff() time.Duration {
	d := e.cfg.RetryDelay
	if d <= 0 || !e.cfg.Jitter {
		return d
	}
	// uniform in [d/2, 3d/2)
	return d/2 + rand.N(d)
}

func normalize(control frameworks.Control, eval *Evaluation, pc *documents.PreparedContext) (ControlOutcome, error) {
	status, err := ParseStatus(eval.Status)
	if err != nil {
		return ControlOutcome{}, err
	}

	citations := make([]Citation, 0, len(eval.Citations))
	for _, c := range eval.Citations {
		text := clean(c.Text)
		if text == "" {
			continue
		}

		locator := clean(string(c.Locator))
		if _, err := strconv.Atoi(locator); err == nil {
			locator = "page " + locator
		}

		a := pc.Resolve(documents.Span{
			DocumentID: string(c.DocumentID),
			Locator:    locator,
			Text:       text,
		})

		citations = append(citations, Citation{
			DocumentID:   a.DocumentID,
			DocumentName: a.DocumentName,
			PageNumber:   a.PageNumber,
			Locator:      locator,
			Text:         text,
			Relevance:    clamp(float64(c.Relevance), 0, 1),
		})
	}

	return ControlOutcome{
		ControlID:   control.ID,
		ControlCode: control.Code,
		Position:    control.Position,
		Status:      status,
		Confidence:  clamp(float64(eval.Confidence), 0, 100),
		Reasoning:   clean(eval.Reasoning),
		Citations:   citations,
	}, nil
}

// clean trims model text and drops NUL bytes, which TEXT columns reject.
func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func failedOutcome(control frameworks.Control, attempts int, err error) ControlOutcome {
	return ControlOutcome{
		ControlID:   control.ID,
		ControlCode: control.Code,
		Position:    control.Position,
		Status:      StatusMissing,
		Confidence:  0,
		Reasoning:   clean(fmt.Sprintf("evaluation failed after %d attempt(s): %v", attempts, err)),
		Citations:   []Citation{},
		Failed:      true,
		Attempts:    attempts,
	}
}

// ParseStatus maps backend status text onto a Status. Matching ignores case,
// surrounding space and the separators between words.
func ParseStatus(s string) (Status, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "compliant", "met", "satisfied":
		return StatusCompliant, nil
	case "partial", "partiallycompliant", "partiallymet":
		return StatusPartial, nil
	case "missing", "noncompliant", "notcompliant", "notmet", "none":
		return StatusMissing, nil
	}
	return "", fmt.Errorf("%w: status %q", ErrMalformedOutcome, s)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
