package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeepL talks to the DeepL v2 REST API. Free-tier keys (":fx" suffix)
// are routed to the free endpoint.
type DeepL struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewDeepL creates the DeepL provider.
func NewDeepL(apiKey string, timeout time.Duration) *DeepL {
	base := "https://api.deepl.com"
	if strings.HasSuffix(apiKey, ":fx") {
		base = "https://api-free.deepl.com"
	}
	return &DeepL{
		key:     apiKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *DeepL) Name() string { return "deepl" }

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
	Message string `json:"message"`
}

func (d *DeepL) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(targetLang))
	if sourceLang != "" {
		form.Set("source_lang", strings.ToUpper(sourceLang))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: d.Name(), Err: err}
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: d.Name(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: d.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", d.classify(resp.StatusCode, body)
	}

	var out deeplResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Kind: KindTransient, Provider: d.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Translations) == 0 {
		return "", &Error{Kind: KindTransient, Provider: d.Name(), Err: fmt.Errorf("empty response")}
	}
	return strings.TrimSpace(out.Translations[0].Text), nil
}

// Summarize falls back to local truncation; DeepL has no summarization API.
func (d *DeepL) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	return Truncate(text, maxLen), nil
}

func (d *DeepL) classify(status int, body []byte) error {
	var out deeplResponse
	_ = json.Unmarshal(body, &out)
	msg := out.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := fmt.Errorf("http %d: %s", status, msg)

	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests || status == 456: // 456 = quota exceeded
		kind = KindRateLimited
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "lang"):
		kind = KindUnsupportedLanguage
	}
	return &Error{Kind: kind, Provider: d.Name(), Err: err}
}
