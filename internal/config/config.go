package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Guardian   GuardianConfig   `mapstructure:"guardian"`
	Prices     PricesConfig     `mapstructure:"prices"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Export     ExportConfig     `mapstructure:"export"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// GuardianConfig holds Guardian content API configuration
type GuardianConfig struct {
	APIBaseURL      string        `mapstructure:"api_base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Section         string        `mapstructure:"section"`
	PageSize        int           `mapstructure:"page_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimitPerSec int           `mapstructure:"rate_limit_per_sec"`
}

// PricesConfig holds the end-of-day price provider configuration
type PricesConfig struct {
	APIBaseURL      string        `mapstructure:"api_base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimitPerSec int           `mapstructure:"rate_limit_per_sec"`
}

// ClassifierConfig holds the LLM opinion-classification configuration
type ClassifierConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// DetectorConfig holds the contrarian detection and scoring constants
type DetectorConfig struct {
	MinorityThreshold     float64 `mapstructure:"minority_threshold"`
	MoveThresholdPct      float64 `mapstructure:"move_threshold_pct"`
	HighConfidenceBonus   float64 `mapstructure:"high_confidence_bonus"`
	MediumConfidenceBonus float64 `mapstructure:"medium_confidence_bonus"`
	LowConfidenceBonus    float64 `mapstructure:"low_confidence_bonus"`
	CorrectMultiplier     float64 `mapstructure:"correct_multiplier"`
}

// LedgerConfig holds ledger persistence configuration
type LedgerConfig struct {
	Backend string `mapstructure:"backend"` // "badger" or "json"
	Path    string `mapstructure:"path"`
}

// ExportConfig holds CSV export configuration
type ExportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// WatchConfig holds the continuous-processing universe and schedule.
// Companies maps price-feed symbols to the display names used for article
// search ("AAPL.US" -> "Apple").
type WatchConfig struct {
	Companies     map[string]string `mapstructure:"companies"`
	Schedule      string            `mapstructure:"schedule"` // cron spec with seconds field
	LookbackDays  int               `mapstructure:"lookback_days"`
	LookaheadDays int               `mapstructure:"lookahead_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string   `mapstructure:"level"`
	Output    []string `mapstructure:"output"`
	Directory string   `mapstructure:"directory"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CONTRALEDGER")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Guardian defaults
	v.SetDefault("guardian.api_base_url", "https://content.guardianapis.com")
	v.SetDefault("guardian.section", "business")
	v.SetDefault("guardian.page_size", 50)
	v.SetDefault("guardian.timeout", "30s")
	v.SetDefault("guardian.rate_limit_per_sec", 1)

	// Price provider defaults
	v.SetDefault("prices.api_base_url", "https://eodhd.com/api")
	v.SetDefault("prices.timeout", "30s")
	v.SetDefault("prices.rate_limit_per_sec", 5)

	// Classifier defaults
	v.SetDefault("classifier.model", "claude-sonnet-4-20250514")
	v.SetDefault("classifier.max_tokens", 4096)
	v.SetDefault("classifier.temperature", 0.0)
	v.SetDefault("classifier.max_retries", 3)

	// Detection defaults
	v.SetDefault("detector.minority_threshold", 0.40)
	v.SetDefault("detector.move_threshold_pct", 3.0)
	v.SetDefault("detector.high_confidence_bonus", 20.0)
	v.SetDefault("detector.medium_confidence_bonus", 10.0)
	v.SetDefault("detector.low_confidence_bonus", 5.0)
	v.SetDefault("detector.correct_multiplier", 1.5)

	// Ledger defaults
	v.SetDefault("ledger.backend", "badger")
	v.SetDefault("ledger.path", "./data/ledger.db")

	// Export defaults
	v.SetDefault("export.enabled", true)
	v.SetDefault("export.directory", "./exports")

	// Watch defaults
	v.SetDefault("watch.schedule", "0 0 6 * * *")
	v.SetDefault("watch.lookback_days", 14)
	v.SetDefault("watch.lookahead_days", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", []string{"console"})
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Guardian.APIBaseURL == "" {
		return fmt.Errorf("guardian.api_base_url is required")
	}
	if c.Guardian.PageSize < 1 || c.Guardian.PageSize > 200 {
		return fmt.Errorf("guardian.page_size must be between 1 and 200")
	}
	if c.Guardian.RateLimitPerSec < 1 {
		return fmt.Errorf("guardian.rate_limit_per_sec must be at least 1")
	}

	if c.Prices.APIBaseURL == "" {
		return fmt.Errorf("prices.api_base_url is required")
	}
	if c.Prices.RateLimitPerSec < 1 {
		return fmt.Errorf("prices.rate_limit_per_sec must be at least 1")
	}

	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier.model is required")
	}
	if c.Classifier.MaxTokens < 1 {
		return fmt.Errorf("classifier.max_tokens must be at least 1")
	}
	if c.Classifier.Temperature < 0.0 || c.Classifier.Temperature > 1.0 {
		return fmt.Errorf("classifier.temperature must be between 0.0 and 1.0")
	}
	if c.Classifier.MaxRetries < 0 {
		return fmt.Errorf("classifier.max_retries must not be negative")
	}

	if c.Detector.MinorityThreshold <= 0.0 || c.Detector.MinorityThreshold > 1.0 {
		return fmt.Errorf("detector.minority_threshold must be in (0.0, 1.0]")
	}
	if c.Detector.MoveThresholdPct <= 0.0 {
		return fmt.Errorf("detector.move_threshold_pct must be positive")
	}
	if c.Detector.CorrectMultiplier < 1.0 {
		return fmt.Errorf("detector.correct_multiplier must be at least 1.0")
	}

	if c.Ledger.Backend != "badger" && c.Ledger.Backend != "json" {
		return fmt.Errorf("ledger.backend must be one of: badger, json")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}

	if c.Export.Enabled && c.Export.Directory == "" {
		return fmt.Errorf("export.directory is required when export is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Watch.Schedule == "" {
		return fmt.Errorf("watch.schedule is required")
	}
	if c.Watch.LookbackDays < 1 {
		return fmt.Errorf("watch.lookback_days must be at least 1")
	}
	if c.Watch.LookaheadDays < 0 {
		return fmt.Errorf("watch.lookahead_days must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}
