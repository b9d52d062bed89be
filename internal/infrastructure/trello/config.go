// Package trello implements the source-system client against the Trello
// REST API.
package trello

import (
	"fmt"
	"time"

	appconfig "github.com/agencyboard/backend/internal/infrastructure/config"
)

// DefaultBaseURL is the public Trello API endpoint
const DefaultBaseURL = "https://api.trello.com/1"

// Config holds Trello API client settings shared by all clients built from
// the same factory
type Config struct {
	BaseURL           string
	RequestTimeout    time.Duration
	DownloadTimeout   time.Duration
	PageSize          int
	RatePerSecond     float64
	RateBurst         int
	MaxRetries        int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	MaxAttachmentSize int64
}

// DefaultConfig returns settings suitable for the public Trello API
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		RequestTimeout:    30 * time.Second,
		DownloadTimeout:   5 * time.Minute,
		PageSize:          1000,
		RatePerSecond:     8,
		RateBurst:         10,
		MaxRetries:        5,
		RetryInitialDelay: time.Second,
		RetryMaxDelay:     30 * time.Second,
		MaxAttachmentSize: 100 << 20,
	}
}

// ConfigFromApp builds a client config from the application configuration
func ConfigFromApp(cfg *appconfig.TrelloConfig) *Config {
	return &Config{
		BaseURL:           cfg.BaseURL,
		RequestTimeout:    cfg.RequestTimeout,
		DownloadTimeout:   cfg.DownloadTimeout,
		PageSize:          cfg.PageSize,
		RatePerSecond:     cfg.RatePerSecond,
		RateBurst:         cfg.RateBurst,
		MaxRetries:        cfg.MaxRetries,
		RetryInitialDelay: cfg.RetryInitialDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		MaxAttachmentSize: cfg.MaxAttachmentSize,
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("trello: base URL is required")
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("trello: page size must be in (0, 1000], got %d", c.PageSize)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("trello: rate per second must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("trello: max retries cannot be negative")
	}
	return nil
}
