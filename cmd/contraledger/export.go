package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/export"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full ledger to CSV",
	Long: `Write the master ledger and one history file per author as CSV,
suitable for spreadsheets or downstream analysis.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default: export.directory from the config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Directory
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	entries, err := store.All()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Ledger is empty, nothing to export.")
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	masterPath := filepath.Join(dir, "master_ledger.csv")
	if err := export.WriteMasterCSV(masterPath, entries); err != nil {
		return err
	}

	authorsDir := filepath.Join(dir, "authors")
	if err := os.MkdirAll(authorsDir, 0o755); err != nil {
		return fmt.Errorf("creating authors directory: %w", err)
	}
	written := 0
	for _, entry := range entries {
		records, err := store.History(entry.Key)
		if err != nil {
			return fmt.Errorf("reading history for %s: %w", entry.Key, err)
		}
		if len(records) == 0 {
			continue
		}
		path := filepath.Join(authorsDir, export.HistoryFileName(entry.Key))
		if err := export.WriteAuthorHistoryCSV(path, entry, records); err != nil {
			return err
		}
		written++
	}

	fmt.Printf("📁 Exported %d authors to %s (%d history files)\n", len(entries), dir, written)
	return nil
}
