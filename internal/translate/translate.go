// Package translate defines the translation provider interface and its
// OpenAI, DeepL and Google Cloud Translate implementations.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryan-buckman/babelfeed/internal/config"
)

// Kind classifies a provider failure for the caller's retry/skip/abort
// decision.
type Kind int

const (
	// KindTransient covers network failures and 5xx responses; retry.
	KindTransient Kind = iota
	// KindRateLimited means the provider throttled us; retry with backoff.
	KindRateLimited
	// KindAuth means the credential was rejected; fatal for the run.
	KindAuth
	// KindUnsupportedLanguage is fatal for the article only; skip it.
	KindUnsupportedLanguage
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindUnsupportedLanguage:
		return "unsupported_language"
	default:
		return "transient"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind, defaulting to transient for
// unclassified errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransient
}

// Retryable reports whether the failure is worth another attempt.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTransient:
		return true
	}
	return false
}

// Provider is the uniform adapter over translation services. Translate
// may be slow and is subject to transient failure; callers must never
// assume success.
type Provider interface {
	Name() string

	// Translate renders text into targetLang. sourceLang may be empty,
	// meaning the provider should auto-detect.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// Summarize produces a summary of at most maxLen characters.
	// Providers without a summarization capability fall back to local
	// head/tail truncation.
	Summarize(ctx context.Context, text string, maxLen int) (string, error)
}

// New selects and constructs the configured provider, wrapped with the
// configured request rate limit.
func New(cfg *config.Config) (Provider, error) {
	key := cfg.Credential()
	if key == "" {
		return nil, &Error{Kind: KindAuth, Provider: cfg.Provider,
			Err: fmt.Errorf("missing credential %s", cfg.CredentialEnv())}
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p = NewOpenAI(key, cfg.Translation.Model)
	case config.ProviderDeepL:
		p = NewDeepL(key, cfg.HTTPTimeout())
	case config.ProviderGoogle:
		p = NewGoogle(key, cfg.HTTPTimeout())
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return Throttled(p, cfg.Translation.RatePerSec, cfg.Translation.RateBurst), nil
}

// Truncate keeps the head and tail of overlong text around a truncation
// marker. The head usually carries the lede, the tail often carries key
// facts. It doubles as the summarization fallback for providers without
// a summarization capability.
func Truncate(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	head := text[:maxLen*7/10]
	tail := text[len(text)-maxLen*3/10:]
	return head + "\n\n[...TRUNCATED...]\n\n" + tail
}
