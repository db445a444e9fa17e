// Package export writes the tabular views of the ledger: the master CSV
// (one row per author), per-author history CSVs, and per-run finding
// dashboards. Column layouts are stable; downstream spreadsheets key on
// them.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/contraledger/internal/models"
)

// masterHeader is the fixed 22-column master ledger layout.
var masterHeader = []string{
	"Author_ID",
	"Author_Name",
	"First_Seen_Date",
	"Last_Seen_Date",
	"Total_Earnings_Calls",
	"Total_Companies_Covered",
	"Total_Contrarian_Instances",
	"Successful_Contrarian_Calls",
	"Failed_Contrarian_Calls",
	"Contrarian_Success_Rate",
	"Overall_Contrarian_Score",
	"Average_Contrarian_Score_Per_Call",
	"Companies_List",
	"Latest_Company",
	"Latest_Symbol",
	"Latest_Earnings_Date",
	"Latest_Contrarian_Type",
	"Latest_Was_Correct",
	"Repeat_Contrarian_Count",
	"Consistency_Score",
	"Risk_Level",
	"Last_Updated",
}

// historyHeader is the per-author history log layout.
var historyHeader = []string{
	"Date_Added",
	"Author_Name",
	"Company",
	"Symbol",
	"Earnings_Date",
	"Sentiment",
	"Earnings_Prediction",
	"Confidence",
	"Contrarian_Type",
	"Contrarian_Score",
	"Was_Minority_Sentiment",
	"Was_Minority_Prediction",
	"Was_Correct",
	"Actual_Result",
	"Price_Move_Pct",
	"Reasoning",
}

// findingsHeader is the per-run findings dashboard layout. Unlike the
// master and history files it covers every evaluated opinion, contrarian or
// not.
var findingsHeader = []string{
	"Finding_ID",
	"Event_Key",
	"Company",
	"Symbol",
	"Earnings_Date",
	"Author",
	"Sentiment",
	"Earnings_Prediction",
	"Confidence",
	"Sentiment_Share",
	"Prediction_Share",
	"Was_Minority_Sentiment",
	"Was_Minority_Prediction",
	"Is_Contrarian",
	"Contrarian_Type",
	"Contrarian_Score",
	"Was_Correct",
	"Actual_Result",
	"Price_Move_Pct",
	"Source",
	"Evaluated_At",
}

// WriteMasterCSV writes the master ledger file: one row per author entry,
// in the order given.
func WriteMasterCSV(path string, entries []models.AuthorLedgerEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, masterRow(entry))
	}
	return writeCSV(path, masterHeader, rows)
}

// WriteAuthorHistoryCSV writes one author's append-only history log.
func WriteAuthorHistoryCSV(path string, entry models.AuthorLedgerEntry, records []models.AuthorHistoryRecord) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, historyRow(entry.DisplayName, record))
	}
	return writeCSV(path, historyHeader, rows)
}

// WriteFindingsCSV writes the per-run dashboard of every evaluated opinion.
func WriteFindingsCSV(path string, findings []models.ContrarianFinding) error {
	rows := make([][]string, 0, len(findings))
	for _, finding := range findings {
		rows = append(rows, findingRow(finding))
	}
	return writeCSV(path, findingsHeader, rows)
}

// HistoryFileName returns the file name for one author's history log.
func HistoryFileName(key models.AuthorKey) string {
	return string(key) + "_history.csv"
}

func masterRow(e models.AuthorLedgerEntry) []string {
	return []string{
		string(e.Key),
		e.DisplayName,
		e.FirstSeen.Format("2006-01-02"),
		e.LastSeen.Format("2006-01-02"),
		strconv.Itoa(e.TotalAppearances),
		strconv.Itoa(len(e.Companies)),
		strconv.Itoa(e.ContrarianInstances),
		strconv.Itoa(e.SuccessfulCalls),
		strconv.Itoa(e.FailedCalls),
		formatRate(e.SuccessRate),
		formatScore(e.TotalScore),
		formatScore(e.AverageScore),
		strings.Join(e.Companies, ";"),
		e.LatestCompany,
		e.LatestSymbol,
		formatDate(e.LatestEventDate),
		string(e.LatestType),
		formatBoolPtr(e.LatestCorrect),
		strconv.Itoa(repeatCount(e.ContrarianInstances)),
		formatScore(e.ConsistencyScore),
		string(e.RiskTier),
		e.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func historyRow(displayName string, r models.AuthorHistoryRecord) []string {
	minoritySentiment, minorityPrediction := minorityFlags(r.Type)
	return []string{
		r.RecordedAt.Format("2006-01-02 15:04:05"),
		displayName,
		r.Company,
		r.Symbol,
		formatDate(r.EventDate),
		string(r.Sentiment),
		string(r.Prediction),
		string(r.Confidence),
		string(r.Type),
		formatScore(r.Score),
		strconv.FormatBool(minoritySentiment),
		strconv.FormatBool(minorityPrediction),
		formatBoolPtr(r.Correct),
		string(r.ActualResult),
		formatFloatPtr(r.PriceMovePct),
		r.Reasoning,
	}
}

func findingRow(f models.ContrarianFinding) []string {
	return []string{
		f.ID,
		f.EventKey,
		f.Company,
		f.Symbol,
		formatDate(f.EventDate),
		f.Author,
		string(f.Sentiment),
		string(f.Prediction),
		string(f.Confidence),
		formatShare(f.SentimentShare),
		formatShare(f.PredictionShare),
		strconv.FormatBool(f.WasMinoritySentiment),
		strconv.FormatBool(f.WasMinorityPrediction),
		strconv.FormatBool(f.IsContrarian),
		string(f.Type),
		formatScore(f.Score),
		formatBoolPtr(f.Correct),
		string(f.ActualResult),
		formatFloatPtr(f.PriceMovePct),
		f.SourceID,
		f.EvaluatedAt.Format("2006-01-02 15:04:05"),
	}
}

// minorityFlags recovers the per-dimension minority booleans from the
// persisted contrarian type.
func minorityFlags(t models.ContrarianType) (sentiment, prediction bool) {
	switch t {
	case models.ContrarianBoth:
		return true, true
	case models.ContrarianSentimentOnly:
		return true, false
	case models.ContrarianPredictionOnly:
		return false, true
	}
	return false, false
}

// repeatCount is instances beyond the first: a one-off contrarian has no
// repeat signal yet.
func repeatCount(instances int) int {
	if instances <= 1 {
		return 0
	}
	return instances - 1
}

func formatRate(rate *float64) string {
	if rate == nil {
		return ""
	}
	return strconv.FormatFloat(*rate, 'f', 1, 64)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

func formatShare(share float64) string {
	return strconv.FormatFloat(share, 'f', 3, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatBool(*v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return f.Close()
}
