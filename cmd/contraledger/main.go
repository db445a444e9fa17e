// Contraledger — contrarian detection and author performance ledger.
//
// Main CLI entrypoint using the cobra command framework.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/classify"
	"github.com/rewired-gh/contraledger/internal/config"
	"github.com/rewired-gh/contraledger/internal/export"
	"github.com/rewired-gh/contraledger/internal/guardian"
	"github.com/rewired-gh/contraledger/internal/ledger"
	"github.com/rewired-gh/contraledger/internal/logger"
	"github.com/rewired-gh/contraledger/internal/pipeline"
	"github.com/rewired-gh/contraledger/internal/prices"
	"github.com/rewired-gh/contraledger/internal/scorer"
	"github.com/rewired-gh/contraledger/internal/storage/badger"
	"github.com/rewired-gh/contraledger/internal/telegram"
)

// defaultConfigPath is picked up when no --config flag is given.
const defaultConfigPath = "configs/config.yaml"

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state shared by the commands.
var (
	cfg *config.Config
	log arbor.ILogger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "contraledger",
	Short: "Contrarian detection and author performance ledger",
	Long: `Contraledger evaluates pre-earnings press commentary: it tallies the
consensus among commentators for each earnings event, flags the minority
voices, checks their calls against the realized price move, and keeps a
durable per-author performance ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			if _, err := os.Stat(defaultConfigPath); err == nil {
				path = defaultConfigPath
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		log = logger.Init(logger.Settings{
			Level:     level,
			Output:    cfg.Logging.Output,
			Directory: cfg.Logging.Directory,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(repeatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the configured ledger backend.
func openStore() (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "badger":
		return badger.Open(cfg.Ledger.Path, log)
	case "json":
		return ledger.NewMemoryStore(cfg.Ledger.Path, log)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func closeStore(store ledger.Store) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close ledger store")
	}
}

// app bundles the wired collaborators for the processing commands.
type app struct {
	store    ledger.Store
	pipeline *pipeline.Pipeline
	prices   *prices.Client
	telegram *telegram.Client
}

func (a *app) Close() {
	closeStore(a.store)
}

// newApp opens the ledger store and assembles the full pipeline from the
// loaded configuration.
func newApp(dryRun bool) (*app, error) {
	if cfg.Guardian.APIKey == "" {
		return nil, fmt.Errorf("guardian.api_key is required (CONTRALEDGER_GUARDIAN_API_KEY)")
	}
	if cfg.Prices.APIKey == "" {
		return nil, fmt.Errorf("prices.api_key is required (CONTRALEDGER_PRICES_API_KEY)")
	}

	classifier, err := classify.New(classify.Config{
		APIKey:      cfg.Classifier.APIKey,
		Model:       cfg.Classifier.Model,
		MaxTokens:   cfg.Classifier.MaxTokens,
		Temperature: cfg.Classifier.Temperature,
		MaxRetries:  cfg.Classifier.MaxRetries,
	}, log)
	if err != nil {
		return nil, err
	}

	sc, err := scorer.New(scorer.Config{
		MinorityThreshold:     cfg.Detector.MinorityThreshold,
		HighConfidenceBonus:   cfg.Detector.HighConfidenceBonus,
		MediumConfidenceBonus: cfg.Detector.MediumConfidenceBonus,
		LowConfidenceBonus:    cfg.Detector.LowConfidenceBonus,
		CorrectMultiplier:     cfg.Detector.CorrectMultiplier,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}

	a := &app{
		store: store,
		prices: prices.NewClient(cfg.Prices.APIKey,
			prices.WithBaseURL(cfg.Prices.APIBaseURL),
			prices.WithHTTPClient(&http.Client{Timeout: cfg.Prices.Timeout}),
			prices.WithRateLimit(cfg.Prices.RateLimitPerSec),
			prices.WithLogger(log),
		),
	}

	deps := pipeline.Deps{
		Articles: guardian.NewClient(cfg.Guardian.APIKey,
			guardian.WithBaseURL(cfg.Guardian.APIBaseURL),
			guardian.WithSection(cfg.Guardian.Section),
			guardian.WithPageSize(cfg.Guardian.PageSize),
			guardian.WithHTTPClient(&http.Client{Timeout: cfg.Guardian.Timeout}),
			guardian.WithRateLimit(cfg.Guardian.RateLimitPerSec),
			guardian.WithLogger(log),
		),
		Classifier: classifier,
		Prices:     a.prices,
		Scorer:     sc,
		Ledger:     ledger.New(store, log),
		Logger:     log,
	}
	if cfg.Export.Enabled {
		deps.Runs = export.NewRunWriter(cfg.Export.Directory, log)
	}
	if cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			closeStore(store)
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		deps.Notifier = a.telegram
	}

	a.pipeline, err = pipeline.New(deps, pipeline.Options{
		LookbackDays:     cfg.Watch.LookbackDays,
		MoveThresholdPct: cfg.Detector.MoveThresholdPct,
		DryRun:           dryRun,
		Version:          version,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}
	return a, nil
}
