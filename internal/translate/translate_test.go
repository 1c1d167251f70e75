package translate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&Error{Kind: KindAuth, Provider: "x", Err: errors.New("401")}, KindAuth},
		{&Error{Kind: KindRateLimited, Provider: "x", Err: errors.New("429")}, KindRateLimited},
		{errors.New("plain"), KindTransient},
		{nil, KindTransient},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&Error{Kind: KindRateLimited}) || !Retryable(&Error{Kind: KindTransient}) {
		t.Error("rate-limited and transient must be retryable")
	}
	if Retryable(&Error{Kind: KindAuth}) || Retryable(&Error{Kind: KindUnsupportedLanguage}) {
		t.Error("auth and unsupported-language must not be retryable")
	}
}

func TestTruncate(t *testing.T) {
	short := "short text"
	if got := Truncate(short, 100); got != short {
		t.Errorf("short text must pass through, got %q", got)
	}

	long := strings.Repeat("head ", 400) + strings.Repeat("tail ", 400)
	got := Truncate(long, 1000)
	if !strings.Contains(got, "[...TRUNCATED...]") {
		t.Error("marker missing")
	}
	if !strings.HasPrefix(got, "head ") {
		t.Error("head not kept")
	}
	if !strings.HasSuffix(strings.TrimSpace(got), "tail") {
		t.Error("tail not kept")
	}
}

func TestDeepLTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("target_lang"); got != "EN" {
			t.Errorf("target_lang = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"FR","text":"Hello world"}]}`))
	}))
	defer srv.Close()

	d := NewDeepL("test-key", time.Second)
	d.baseURL = srv.URL
	got, err := d.Translate(context.Background(), "Bonjour le monde", "", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}

func TestDeepLClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   Kind
	}{
		{http.StatusForbidden, `{"message":"bad key"}`, KindAuth},
		{http.StatusTooManyRequests, `{}`, KindRateLimited},
		{456, `{"message":"quota exceeded"}`, KindRateLimited},
		{http.StatusBadRequest, `{"message":"target_lang not supported"}`, KindUnsupportedLanguage},
		{http.StatusInternalServerError, `{}`, KindTransient},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		}))
		d := NewDeepL("test-key", time.Second)
		d.baseURL = srv.URL
		_, err := d.Translate(context.Background(), "text", "", "en")
		if KindOf(err) != tt.want {
			t.Errorf("status %d: kind = %v, want %v", tt.status, KindOf(err), tt.want)
		}
		srv.Close()
	}
}

func TestDeepLFreeEndpoint(t *testing.T) {
	d := NewDeepL("abc123:fx", time.Second)
	if d.baseURL != "https://api-free.deepl.com" {
		t.Errorf("free-tier key must use free endpoint, got %s", d.baseURL)
	}
	d2 := NewDeepL("abc123", time.Second)
	if d2.baseURL != "https://api.deepl.com" {
		t.Errorf("paid key must use main endpoint, got %s", d2.baseURL)
	}
}

func TestDeepLSummarizeIsLocal(t *testing.T) {
	d := NewDeepL("k", time.Second)
	long := strings.Repeat("a", 5000)
	got, err := d.Summarize(context.Background(), long, 1000)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(got) > 1100 {
		t.Errorf("summary too long: %d", len(got))
	}
}

func TestGoogleTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("target"); got != "en" {
			t.Errorf("target = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"Good morning","detectedSourceLanguage":"ja"}]}}`))
	}))
	defer srv.Close()

	g := NewGoogle("g-key", time.Second)
	g.baseURL = srv.URL
	got, err := g.Translate(context.Background(), "おはよう", "", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "Good morning" {
		t.Errorf("got %q", got)
	}
}

func TestGoogleClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   Kind
	}{
		{http.StatusForbidden, `{"error":{"code":403,"message":"key invalid"}}`, KindAuth},
		{http.StatusTooManyRequests, `{"error":{"code":429,"message":"rate"}}`, KindRateLimited},
		{http.StatusBadRequest, `{"error":{"code":400,"message":"invalid target language"}}`, KindUnsupportedLanguage},
		{http.StatusBadGateway, `{}`, KindTransient},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		}))
		g := NewGoogle("g-key", time.Second)
		g.baseURL = srv.URL
		_, err := g.Translate(context.Background(), "text", "", "en")
		if KindOf(err) != tt.want {
			t.Errorf("status %d: kind = %v, want %v", tt.status, KindOf(err), tt.want)
		}
		srv.Close()
	}
}

func TestThrottledPacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"translations":[{"text":"ok"}]}`))
	}))
	defer srv.Close()

	d := NewDeepL("k", time.Second)
	d.baseURL = srv.URL
	p := Throttled(d, 50, 1) // 20ms between requests after the burst

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.Translate(context.Background(), "t", "", "en"); err != nil {
			t.Fatalf("translate %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("three requests at 50/s finished too fast: %v", elapsed)
	}
}

func TestThrottledDisabled(t *testing.T) {
	d := NewDeepL("k", time.Second)
	if p := Throttled(d, 0, 0); p != Provider(d) {
		t.Error("non-positive rate must return the provider unchanged")
	}
}
