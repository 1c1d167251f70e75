package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper to create a temp config file.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "babelfeed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
opml: input.opml
provider: openai
target_lang: es
output:
  feeds_dir: out/feeds
  opml_path: out/translated.opml
  cache_path: out/cache.sqlite
  public_base_url: https://feeds.example.com/
translation:
  chunk_limit: 2000
  chunk_factor: 3
`

func TestLoadValid(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-test")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TargetLang != "es" {
		t.Errorf("target_lang = %q, want es", cfg.TargetLang)
	}
	if cfg.Translation.ChunkLimit != 2000 {
		t.Errorf("chunk_limit = %d, want 2000", cfg.Translation.ChunkLimit)
	}
	// Defaults survive partial files.
	if cfg.Concurrency != 4 {
		t.Errorf("concurrency default = %d, want 4", cfg.Concurrency)
	}
	if cfg.Fetch.MaxItemsPerFeed != 30 {
		t.Errorf("max_items_per_feed default = %d, want 30", cfg.Fetch.MaxItemsPerFeed)
	}
	if cfg.Translation.ChunkFactor != 3 {
		t.Errorf("chunk_factor = %d, want 3", cfg.Translation.ChunkFactor)
	}
}

func TestMissingCredentialIsFatal(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "")
	_, err := Load(writeConfig(t, validYAML))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.OPMLPath = "input.opml"
		cfg.Output.PublicBaseURL = "https://feeds.example.com/"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing opml", func(c *Config) { c.OPMLPath = "" }, ErrMissingOPML},
		{"missing base url", func(c *Config) { c.Output.PublicBaseURL = "" }, ErrMissingBaseURL},
		{"base url without slash", func(c *Config) { c.Output.PublicBaseURL = "https://x.com/feeds" }, ErrMissingBaseURL},
		{"unknown provider", func(c *Config) { c.Provider = "yandex" }, ErrUnknownProvider},
		{"bad target lang", func(c *Config) { c.TargetLang = "english" }, ErrInvalidTargetLang},
		{"bad chunk limit", func(c *Config) { c.Translation.ChunkLimit = 0 }, ErrInvalidChunkLimit},
		{"bad chunk factor", func(c *Config) { c.Translation.ChunkFactor = 1 }, ErrInvalidChunkFactor},
		{"bad concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"bad max attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"bad multiplier", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, ErrInvalidMultiplier},
	}
	t.Setenv(EnvOpenAIKey, "sk-test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCredentialEnvPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		env      string
	}{
		{ProviderOpenAI, EnvOpenAIKey},
		{ProviderDeepL, EnvDeepLKey},
		{ProviderGoogle, EnvGoogleKey},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Provider = tt.provider
		if got := cfg.CredentialEnv(); got != tt.env {
			t.Errorf("CredentialEnv(%s) = %s, want %s", tt.provider, got, tt.env)
		}
	}
}

func TestRetryDelay(t *testing.T) {
	rp := RetryPolicy{
		MaxAttempts:       5,
		InitialDelayMs:    100,
		MaxDelayMs:        350,
		BackoffMultiplier: 2.0,
	}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 350 * time.Millisecond}, // capped
		{5, 350 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := rp.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
