package plan

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bryan-buckman/babelfeed/internal/config"
	"github.com/bryan-buckman/babelfeed/internal/translate"
)

// Result is the executed plan's output.
type Result struct {
	Text string
	// Partial is set when at least one chunk kept its original-language
	// text after retries were exhausted.
	Partial bool
}

// Executor runs translation plans against a provider with per-chunk
// retry and graceful partial-failure degradation.
type Executor struct {
	provider translate.Provider
	retry    config.RetryPolicy
	log      *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(provider translate.Provider, retry config.RetryPolicy, log *slog.Logger) *Executor {
	return &Executor{provider: provider, retry: retry, log: log}
}

// Execute runs the plan. Chunks that still fail retryably after the
// retry budget keep their source-language text and flag the result as
// partial. Auth and unsupported-language failures are returned to the
// caller (abort run / skip article respectively).
func (e *Executor) Execute(ctx context.Context, p Plan, sourceLang, targetLang string) (Result, error) {
	chunks := p.Chunks

	if p.Kind == SummarizeThenTranslate {
		summary, err := e.summarize(ctx, chunks[0], p.Limit)
		if err != nil {
			return Result{}, err
		}
		chunks = []string{summary}
	}

	out := make([]string, len(chunks))
	partial := false
	for i, chunk := range chunks {
		translated, err := e.TranslateText(ctx, chunk, sourceLang, targetLang)
		if err != nil {
			if !translate.Retryable(err) {
				return Result{}, err
			}
			// Degrade: keep the original-language chunk inline.
			e.log.Warn("chunk left untranslated",
				"chunk", i, "kind", translate.KindOf(err).String(), "error", err)
			out[i] = chunk
			partial = true
			continue
		}
		out[i] = translated
	}
	return Result{Text: strings.Join(out, "\n\n"), Partial: partial}, nil
}

// TranslateText translates one span with the retry budget. Used for
// chunks and for article titles.
func (e *Executor) TranslateText(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		if err := e.wait(ctx, attempt); err != nil {
			return "", &translate.Error{Kind: translate.KindTransient, Provider: e.provider.Name(), Err: err}
		}
		translated, err := e.provider.Translate(ctx, text, sourceLang, targetLang)
		if err == nil {
			return translated, nil
		}
		lastErr = err
		if !translate.Retryable(err) {
			return "", err
		}
		e.log.Debug("translate attempt failed",
			"attempt", attempt, "kind", translate.KindOf(err).String(), "error", err)
	}
	return "", lastErr
}

// summarize asks the provider for a bounded summary, retrying like a
// chunk. When the budget is exhausted it falls back to local truncation
// so the article still gets translated.
func (e *Executor) summarize(ctx context.Context, text string, maxLen int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		if err := e.wait(ctx, attempt); err != nil {
			return "", &translate.Error{Kind: translate.KindTransient, Provider: e.provider.Name(), Err: err}
		}
		summary, err := e.provider.Summarize(ctx, text, maxLen)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if !translate.Retryable(err) {
			return "", err
		}
	}
	e.log.Warn("summarization failed, truncating locally", "error", lastErr)
	return translate.Truncate(text, maxLen), nil
}

func (e *Executor) wait(ctx context.Context, attempt int) error {
	delay := e.retry.Delay(attempt)
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
