// Package config loads and validates environment variables at startup.
// Fail-fast: if a required credential is missing, the process exits before
// any run proceeds.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration for the digest pipeline.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppURL string `env:"APP_URL"` // base URL for confirm/unsubscribe links

	// Storage. The admin URL must carry the elevated (service-role)
	// credential; all mutating calls go through it.
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseAdminURL string `env:"DATABASE_ADMIN_URL,required"`
	RedisURL         string `env:"REDIS_URL,required"`

	// LLM collaborator.
	GoogleAPIKey  string `env:"GOOGLE_API_KEY,required"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gemini-2.0-flash"`
	RetryMax      int    `env:"LLM_RETRY_MAX" envDefault:"5"`
	RetryBaseSecs int    `env:"LLM_RETRY_BASE_SECONDS" envDefault:"3"`

	// Search provider: "serpapi" or "bundesagentur".
	SearchProvider string   `env:"SEARCH_PROVIDER" envDefault:"serpapi"`
	SerpAPIKey     string   `env:"SERPAPI_KEY"`
	JobsPerQuery   int      `env:"JOBS_PER_QUERY" envDefault:"10"`
	ExtraDenylist  []string `env:"DENYLIST_DOMAINS" envSeparator:","`

	// Email delivery.
	SMTPHost     string `env:"SMTP_HOST,required"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	EmailFrom    string `env:"EMAIL_FROM,required"`

	// Pipeline tuning.
	ScorerConcurrency   int `env:"SCORER_CONCURRENCY" envDefault:"10"`
	DefaultMinScore     int `env:"DEFAULT_MIN_SCORE" envDefault:"70"`
	DigestIntervalHours int `env:"DIGEST_INTERVAL_HOURS" envDefault:"24"`

	// Subscriber lifecycle windows.
	ConfirmTokenHours int `env:"CONFIRM_TOKEN_HOURS" envDefault:"24"`
	SubscriptionDays  int `env:"SUBSCRIPTION_DAYS" envDefault:"30"`
	PurgeGraceDays    int `env:"PURGE_GRACE_DAYS" envDefault:"7"`
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.SearchProvider {
	case "serpapi":
		if cfg.SerpAPIKey == "" {
			return nil, fmt.Errorf("SERPAPI_KEY is required when SEARCH_PROVIDER=serpapi")
		}
	case "bundesagentur":
		// Public API, no credential needed.
	default:
		return nil, fmt.Errorf("unknown SEARCH_PROVIDER %q", cfg.SearchProvider)
	}

	if cfg.DigestIntervalHours < 1 {
		return nil, fmt.Errorf("DIGEST_INTERVAL_HOURS must be a positive integer, got %d", cfg.DigestIntervalHours)
	}
	if cfg.ScorerConcurrency < 1 {
		return nil, fmt.Errorf("SCORER_CONCURRENCY must be a positive integer, got %d", cfg.ScorerConcurrency)
	}

	return cfg, nil
}
