package main

import (
	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/query"
)

var repeatMin int

var repeatCmd = &cobra.Command{
	Use:   "repeat",
	Short: "Show repeat contrarians",
	Long: `List authors who have taken a contrarian position more than once,
ranked by success rate. Repeat contrarians are the signal the ledger exists
to surface; one-off minority calls are mostly noise.`,
	RunE: runRepeat,
}

func init() {
	repeatCmd.Flags().IntVar(&repeatMin, "min", 2, "minimum number of contrarian instances")
}

func runRepeat(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	entries, err := query.New(store).Repeat(repeatMin)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}
