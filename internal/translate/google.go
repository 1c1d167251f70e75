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

// Google talks to the Cloud Translation v2 REST API with an API key.
type Google struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewGoogle creates the Google Cloud Translate provider.
func NewGoogle(apiKey string, timeout time.Duration) *Google {
	return &Google{
		key:     apiKey,
		baseURL: "https://translation.googleapis.com/language/translate/v2",
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Google) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", targetLang)
	form.Set("format", "text")
	if sourceLang != "" {
		form.Set("source", sourceLang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"?key="+url.QueryEscape(g.key), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: g.Name(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: g.Name(), Err: err}
	}

	var out googleResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Kind: KindTransient, Provider: g.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", g.classify(resp.StatusCode, &out)
	}
	if len(out.Data.Translations) == 0 {
		return "", &Error{Kind: KindTransient, Provider: g.Name(), Err: fmt.Errorf("empty response")}
	}
	return strings.TrimSpace(out.Data.Translations[0].TranslatedText), nil
}

// Summarize falls back to local truncation; the Translation API has no
// summarization capability.
func (g *Google) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	return Truncate(text, maxLen), nil
}

func (g *Google) classify(status int, out *googleResponse) error {
	msg := out.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := fmt.Errorf("http %d: %s", status, msg)

	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "language"):
		kind = KindUnsupportedLanguage
	}
	return &Error{Kind: kind, Provider: g.Name(), Err: err}
}
