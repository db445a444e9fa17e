package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/query"
)

var historyCmd = &cobra.Command{
	Use:   "history <author>",
	Short: "Show one author's full contrarian record",
	Long: `Print an author's aggregate ledger entry and their complete per-event
history. The author may be given as a raw byline ("Jane Smith") or an
already-normalized key ("jane smith").`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	history, err := query.New(store).History(args[0])
	if err != nil {
		return err
	}
	if history.Entry == nil {
		fmt.Printf("No ledger entry for %q.\n", args[0])
		return nil
	}

	e := history.Entry
	fmt.Printf("📖 %s (%s risk)\n", e.DisplayName, e.RiskTier)
	rate := "n/a"
	if e.SuccessRate != nil {
		rate = fmt.Sprintf("%.1f%%", *e.SuccessRate)
	}
	fmt.Printf("   success rate: %s (%d won, %d lost), total score %.1f\n",
		rate, e.SuccessfulCalls, e.FailedCalls, e.TotalScore)
	fmt.Printf("   %d contrarian calls over %d appearances, first seen %s\n",
		e.ContrarianInstances, e.TotalAppearances, e.FirstSeen.Format("2006-01-02"))
	if len(e.Companies) > 0 {
		fmt.Printf("   companies: %v\n", e.Companies)
	}

	if len(history.Records) == 0 {
		return nil
	}
	fmt.Println()
	for _, r := range history.Records {
		line := fmt.Sprintf("%s  %s (%s)  %s/%s",
			r.EventDate.Format("2006-01-02"), r.Company, r.Symbol, r.Sentiment, r.Prediction)
		if r.Type != models.ContrarianNone {
			line += fmt.Sprintf("  [%s]", r.Type)
		}
		switch {
		case r.Correct == nil:
			line += "  unresolved"
		case *r.Correct:
			line += fmt.Sprintf("  ✓ score %.1f", r.Score)
		default:
			line += "  ✗"
		}
		fmt.Println(line)
	}
	return nil
}
