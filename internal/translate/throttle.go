package translate

import (
	"context"

	"golang.org/x/time/rate"
)

// throttled paces requests to the underlying provider so a run stays
// inside the provider's own rate limits.
type throttled struct {
	Provider
	limiter *rate.Limiter
}

// Throttled wraps p with a request rate limit of perSec requests per
// second and the given burst. perSec <= 0 disables throttling.
func Throttled(p Provider, perSec float64, burst int) Provider {
	if perSec <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &throttled{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (t *throttled) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindTransient, Provider: t.Name(), Err: err}
	}
	return t.Provider.Translate(ctx, text, sourceLang, targetLang)
}

func (t *throttled) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindTransient, Provider: t.Name(), Err: err}
	}
	return t.Provider.Summarize(ctx, text, maxLen)
}
