package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/query"
)

var (
	topLimit int
	topSort  string
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the top-ranked contrarian authors",
	Long: `Rank ledger authors by a chosen metric. Authors without a value for
the metric (for example an unresolved success rate) rank last.`,
	RunE: runTop,
}

func init() {
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "maximum number of authors to show")
	topCmd.Flags().StringVar(&topSort, "sort", "success_rate",
		"sort field (success_rate, total_score, average_score, instances, consistency, appearances)")
}

func runTop(cmd *cobra.Command, args []string) error {
	field, err := query.ParseSortField(topSort)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	entries, err := query.New(store).Top(topLimit, field)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []models.AuthorLedgerEntry) {
	if len(entries) == 0 {
		fmt.Println("No authors in the ledger yet.")
		return
	}

	fmt.Printf("%-30s %-8s %7s %5s %5s %9s %5s %5s\n",
		"AUTHOR", "TIER", "RATE", "WON", "LOST", "SCORE", "CONTR", "SEEN")
	for _, e := range entries {
		rate := "n/a"
		if e.SuccessRate != nil {
			rate = fmt.Sprintf("%.1f%%", *e.SuccessRate)
		}
		fmt.Printf("%-30s %-8s %7s %5d %5d %9.1f %5d %5d\n",
			e.DisplayName, e.RiskTier, rate,
			e.SuccessfulCalls, e.FailedCalls,
			e.TotalScore, e.ContrarianInstances, e.TotalAppearances)
	}
}
