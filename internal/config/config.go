// Package config provides configuration management for the translation pipeline.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported translation providers.
const (
	ProviderOpenAI = "openai"
	ProviderDeepL  = "deepl"
	ProviderGoogle = "google"
)

// Environment variables holding provider credentials. Credentials are
// never read from the YAML file.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvDeepLKey  = "DEEPL_API_KEY"
	EnvGoogleKey = "GOOGLE_TRANSLATE_API_KEY"
)

// Configuration validation errors. All are fatal at startup, before any
// network activity.
var (
	ErrMissingOPML        = errors.New("opml input path is required")
	ErrMissingOutputDir   = errors.New("output.feeds_dir is required")
	ErrMissingBaseURL     = errors.New("output.public_base_url is required and must end with '/'")
	ErrUnknownProvider    = errors.New("provider must be one of: openai, deepl, google")
	ErrMissingCredential  = errors.New("provider credential is not set in the environment")
	ErrInvalidTargetLang  = errors.New("target_lang must be a two-letter language code")
	ErrInvalidChunkLimit  = errors.New("translation.chunk_limit must be at least 1")
	ErrInvalidChunkFactor = errors.New("translation.chunk_factor must be at least 2")
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	ErrInvalidMaxAttempts = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidDelay       = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidMultiplier  = errors.New("retry.backoff_multiplier must be >= 1.0")
)

// Config represents the complete pipeline configuration.
type Config struct {
	OPMLPath    string            `yaml:"opml"`
	Output      OutputConfig      `yaml:"output"`
	Provider    string            `yaml:"provider"`
	TargetLang  string            `yaml:"target_lang"`
	Translation TranslationConfig `yaml:"translation"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Retry       RetryPolicy       `yaml:"retry"`
	Concurrency int               `yaml:"concurrency"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// OutputConfig defines where artifacts are written.
type OutputConfig struct {
	FeedsDir       string `yaml:"feeds_dir"`
	OPMLPath       string `yaml:"opml_path"`
	CachePath      string `yaml:"cache_path"`
	PublicBaseURL  string `yaml:"public_base_url"`
	CollectionName string `yaml:"collection_name"`
}

// TranslationConfig tunes the chunking/summarization policy and provider.
type TranslationConfig struct {
	ChunkLimit        int     `yaml:"chunk_limit"`  // L: max chars per provider request
	ChunkFactor       int     `yaml:"chunk_factor"` // K: summarize above K*L chars
	Model             string  `yaml:"model"`        // provider model, where applicable
	RatePerSec        float64 `yaml:"rate_per_sec"` // provider request rate limit
	RateBurst         int     `yaml:"rate_burst"`
	ArticleTimeoutSec int     `yaml:"article_timeout_sec"` // ceiling for one article's translation work
}

// FetchConfig tunes feed and article retrieval.
type FetchConfig struct {
	HTTPTimeoutSec  int    `yaml:"http_timeout_sec"`
	MaxItemsPerFeed int    `yaml:"max_items_per_feed"`
	MinExtractChars int    `yaml:"min_extract_chars"`
	UserAgent       string `yaml:"user_agent"`
}

// RetryPolicy defines per-chunk retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // empty disables the rotated file log
}

// Default returns a configuration with sane defaults applied.
func Default() *Config {
	return &Config{
		Provider:   ProviderOpenAI,
		TargetLang: "en",
		Output: OutputConfig{
			FeedsDir:       "output/feeds",
			OPMLPath:       "output/opml/translated.opml",
			CachePath:      "output/cache.sqlite",
			CollectionName: "Translated Feeds",
		},
		Translation: TranslationConfig{
			ChunkLimit:        4000,
			ChunkFactor:       4,
			RatePerSec:        1,
			RateBurst:         2,
			ArticleTimeoutSec: 120,
		},
		Fetch: FetchConfig{
			HTTPTimeoutSec:  20,
			MaxItemsPerFeed: 30,
			MinExtractChars: 400,
			UserAgent:       "babelfeed/1.0 (+feed translation pipeline)",
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        8000,
			BackoffMultiplier: 2.0,
		},
		Concurrency: 4,
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, including presence of the selected
// provider's credential in the environment.
func (c *Config) Validate() error {
	if c.OPMLPath == "" {
		return ErrMissingOPML
	}
	if c.Output.FeedsDir == "" {
		return ErrMissingOutputDir
	}
	if c.Output.PublicBaseURL == "" || !strings.HasSuffix(c.Output.PublicBaseURL, "/") {
		return ErrMissingBaseURL
	}
	if _, err := url.Parse(c.Output.PublicBaseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingBaseURL, err)
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderDeepL, ProviderGoogle:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownProvider, c.Provider)
	}
	if c.Credential() == "" {
		return fmt.Errorf("%w: %s requires %s", ErrMissingCredential, c.Provider, c.CredentialEnv())
	}
	if len(c.TargetLang) != 2 {
		return fmt.Errorf("%w: got %q", ErrInvalidTargetLang, c.TargetLang)
	}
	if c.Translation.ChunkLimit < 1 {
		return ErrInvalidChunkLimit
	}
	if c.Translation.ChunkFactor < 2 {
		return ErrInvalidChunkFactor
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidDelay
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	return nil
}

// CredentialEnv returns the environment variable name for the selected provider.
func (c *Config) CredentialEnv() string {
	switch c.Provider {
	case ProviderDeepL:
		return EnvDeepLKey
	case ProviderGoogle:
		return EnvGoogleKey
	default:
		return EnvOpenAIKey
	}
}

// Credential returns the selected provider's API key from the environment.
func (c *Config) Credential() string {
	return strings.TrimSpace(os.Getenv(c.CredentialEnv()))
}

// HTTPTimeout returns the article/feed fetch timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Fetch.HTTPTimeoutSec) * time.Second
}

// ArticleTimeout returns the per-article translation deadline.
func (c *Config) ArticleTimeout() time.Duration {
	if c.Translation.ArticleTimeoutSec < 1 {
		return 2 * time.Minute
	}
	return time.Duration(c.Translation.ArticleTimeoutSec) * time.Second
}

// Delay calculates the exponential backoff delay before the given
// attempt number (1-based). The first attempt has no delay.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt-1; i++ {
		delayMs *= rp.BackoffMultiplier
	}
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}
	return time.Duration(int(delayMs)) * time.Millisecond
}
