package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/pipeline"
)

var (
	runCompany string
	runSymbol  string
	runDate    string
	runDryRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a single earnings event",
	Long: `Run the full evaluation pipeline for one earnings event: fetch
pre-earnings articles, classify commentator opinions, compute the consensus,
score the contrarians against the realized price move, and merge the results
into the author ledger.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "company display name used for article search (e.g. \"Apple\")")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "price-feed symbol (e.g. \"AAPL.US\")")
	runCmd.Flags().StringVar(&runDate, "date", "", "earnings report date (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "evaluate without merging into the ledger or notifying")

	runCmd.MarkFlagRequired("company")
	runCmd.MarkFlagRequired("symbol")
	runCmd.MarkFlagRequired("date")
}

func runRun(cmd *cobra.Command, args []string) error {
	date, err := time.Parse("2006-01-02", runDate)
	if err != nil {
		return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", runDate)
	}

	a, err := newApp(runDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.pipeline.Run(ctx, []models.EarningsEvent{{
		Company: runCompany,
		Symbol:  runSymbol,
		Date:    date,
	}})
	if err != nil {
		return err
	}

	printRunResult(result)
	return nil
}

func printRunResult(result pipeline.RunResult) {
	for _, ev := range result.Events {
		fmt.Printf("📊 %s (%s) earnings on %s\n", ev.Event.Company, ev.Event.Symbol, ev.Event.Date.Format("2006-01-02"))
		if ev.Err != nil {
			fmt.Printf("   failed: %v\n", ev.Err)
			continue
		}
		fmt.Printf("   articles: %d, opinions: %d, rejected: %d\n", ev.Articles, ev.Opinions, ev.Rejected)
		if ev.Outcome != nil {
			fmt.Printf("   outcome: %s (%+.2f%%)\n", ev.Outcome.Result, ev.Outcome.PriceMovePct)
		} else {
			fmt.Println("   outcome: unresolved (price data not available yet)")
		}
		for _, f := range ev.Findings {
			if !f.IsContrarian {
				continue
			}
			line := fmt.Sprintf("🎯 %s — %s/%s (%s)", f.Author, f.Sentiment, f.Prediction, f.Type)
			if f.Correct != nil {
				if *f.Correct {
					line += fmt.Sprintf(", correct, score %.1f", f.Score)
				} else {
					line += ", wrong"
				}
			}
			fmt.Println("   " + line)
		}
	}

	if runDryRun {
		fmt.Println("\nDry run: ledger not updated.")
	} else {
		fmt.Printf("\nLedger: %d findings applied, %d authors created, %d updated\n",
			result.Stats.FindingsApplied, result.Stats.EntriesCreated, result.Stats.EntriesUpdated)
	}
	if result.OutputDir != "" {
		fmt.Printf("Exports written to %s\n", result.OutputDir)
	}
}
