package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/models"
)

// RunSummary describes one pipeline run for the metadata file.
type RunSummary struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	Events            []string  `json:"events"`
	ArticlesProcessed int       `json:"articles_processed"`
	OpinionsEvaluated int       `json:"opinions_evaluated"`
	ContrariansFound  int       `json:"contrarians_found"`
	EntriesCreated    int       `json:"entries_created"`
	EntriesUpdated    int       `json:"entries_updated"`
	DryRun            bool      `json:"dry_run"`
	Errors            []string  `json:"errors"`
	OutputFiles       []string  `json:"output_files"`
	Version           string    `json:"version"`
}

// RunWriter creates per-run output folders under a base directory, one
// folder per pipeline run.
type RunWriter struct {
	baseDir string
	logger  arbor.ILogger
}

// NewRunWriter creates a run writer rooted at baseDir.
func NewRunWriter(baseDir string, logger arbor.ILogger) *RunWriter {
	return &RunWriter{baseDir: baseDir, logger: logger}
}

// WriteRun creates run_<stamp>_<id>/ under the base directory and writes
// the findings dashboard, a master ledger snapshot, and metadata.json.
// Returns the created folder path.
func (w *RunWriter) WriteRun(summary RunSummary, findings []models.ContrarianFinding, entries []models.AuthorLedgerEntry) (string, error) {
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}
	stamp := summary.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	folder := fmt.Sprintf("run_%s_%s", stamp.Format("20060102_150405"), shortID(summary.RunID))
	dir := filepath.Join(w.baseDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run folder: %w", err)
	}

	if err := WriteFindingsCSV(filepath.Join(dir, "findings.csv"), findings); err != nil {
		return "", err
	}
	if err := WriteMasterCSV(filepath.Join(dir, "master_ledger.csv"), entries); err != nil {
		return "", err
	}

	summary.OutputFiles = append(summary.OutputFiles, "findings.csv", "master_ledger.csv", "metadata.json")
	if summary.Errors == nil {
		summary.Errors = []string{}
	}
	if summary.Events == nil {
		summary.Events = []string{}
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run metadata: %w", err)
	}

	if w.logger != nil {
		w.logger.Info().
			Str("run_id", summary.RunID).
			Str("folder", dir).
			Int("findings", len(findings)).
			Msg("Wrote run output folder")
	}

	return dir, nil
}

// shortID returns the compact folder suffix for a run ID.
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
