package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	content := `
guardian:
  api_base_url: "https://content.guardianapis.com"
  api_key: "test-guardian-key"
  section: "business"
  page_size: 50
  timeout: 30s
  rate_limit_per_sec: 1

prices:
  api_base_url: "https://eodhd.com/api"
  api_key: "test-prices-key"
  timeout: 30s
  rate_limit_per_sec: 5

classifier:
  api_key: "test-anthropic-key"
  model: "claude-sonnet-4-20250514"
  max_tokens: 4096
  temperature: 0.0
  max_retries: 3

detector:
  minority_threshold: 0.40
  move_threshold_pct: 3.0
  high_confidence_bonus: 20.0
  medium_confidence_bonus: 10.0
  low_confidence_bonus: 5.0
  correct_multiplier: 1.5

ledger:
  backend: "badger"
  path: "./data/ledger.db"

export:
  enabled: true
  directory: "./exports"

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

watch:
  companies:
    AAPL.US: Apple
    MSFT.US: Microsoft
  schedule: "0 0 6 * * *"
  lookback_days: 14
  lookahead_days: 1

logging:
  level: "info"
  output:
    - console
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Guardian.APIBaseURL != "https://content.guardianapis.com" {
		t.Errorf("Unexpected Guardian URL: %s", cfg.Guardian.APIBaseURL)
	}
	if cfg.Guardian.Timeout != 30*time.Second {
		t.Errorf("Unexpected Guardian timeout: %v", cfg.Guardian.Timeout)
	}
	if cfg.Detector.MinorityThreshold != 0.40 {
		t.Errorf("Unexpected minority threshold: %f", cfg.Detector.MinorityThreshold)
	}
	if len(cfg.Watch.Companies) != 2 {
		t.Errorf("Expected 2 watched companies, got %d", len(cfg.Watch.Companies))
	}
	if cfg.Watch.Companies["AAPL.US"] != "Apple" {
		t.Errorf("Expected AAPL.US to map to Apple, got %q", cfg.Watch.Companies["AAPL.US"])
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Detector.MinorityThreshold != 0.40 {
		t.Errorf("default minority threshold = %f, want 0.40", cfg.Detector.MinorityThreshold)
	}
	if cfg.Detector.MoveThresholdPct != 3.0 {
		t.Errorf("default move threshold = %f, want 3.0", cfg.Detector.MoveThresholdPct)
	}
	if cfg.Ledger.Backend != "badger" {
		t.Errorf("default ledger backend = %q, want badger", cfg.Ledger.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Guardian: GuardianConfig{
			APIBaseURL:      "https://content.guardianapis.com",
			PageSize:        50,
			Timeout:         30 * time.Second,
			RateLimitPerSec: 1,
		},
		Prices: PricesConfig{
			APIBaseURL:      "https://eodhd.com/api",
			Timeout:         30 * time.Second,
			RateLimitPerSec: 5,
		},
		Classifier: ClassifierConfig{
			Model:      "claude-sonnet-4-20250514",
			MaxTokens:  4096,
			MaxRetries: 3,
		},
		Detector: DetectorConfig{
			MinorityThreshold: 0.40,
			MoveThresholdPct:  3.0,
			CorrectMultiplier: 1.5,
		},
		Ledger: LedgerConfig{
			Backend: "badger",
			Path:    "./data/ledger.db",
		},
		Export: ExportConfig{
			Enabled:   true,
			Directory: "./exports",
		},
		Watch: WatchConfig{
			Schedule:      "0 0 6 * * *",
			LookbackDays:  14,
			LookaheadDays: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console"},
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid baseline",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "chat" },
			wantErr: true,
		},
		{
			name:    "minority threshold above one",
			mutate:  func(c *Config) { c.Detector.MinorityThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero move threshold",
			mutate:  func(c *Config) { c.Detector.MoveThresholdPct = 0 },
			wantErr: true,
		},
		{
			name:    "unknown ledger backend",
			mutate:  func(c *Config) { c.Ledger.Backend = "postgres" },
			wantErr: true,
		},
		{
			name:    "missing export directory when enabled",
			mutate:  func(c *Config) { c.Export.Directory = "" },
			wantErr: true,
		},
		{
			name:    "empty watch schedule",
			mutate:  func(c *Config) { c.Watch.Schedule = "" },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
