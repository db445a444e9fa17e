package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/contraledger/internal/models"
)

func ledgerEntry(key string) models.AuthorLedgerEntry {
	rate := 50.0
	correct := true
	return models.AuthorLedgerEntry{
		Key:                 models.AuthorKey(key),
		DisplayName:         "Jane Analyst",
		RawNames:            []string{"Jane Analyst"},
		FirstSeen:           time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
		LastSeen:            time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		TotalAppearances:    4,
		ContrarianInstances: 2,
		SuccessfulCalls:     1,
		FailedCalls:         1,
		SuccessRate:         &rate,
		TotalScore:          250.5,
		AverageScore:        125.25,
		Companies:           []string{"Acme Corp", "Globex"},
		LatestCompany:       "Globex",
		LatestSymbol:        "GLB.US",
		LatestEventDate:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		LatestType:          models.ContrarianBoth,
		LatestCorrect:       &correct,
		ConsistencyScore:    50.0,
		RiskTier:            models.RiskMedium,
		UpdatedAt:           time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func historyRecord(key string) models.AuthorHistoryRecord {
	correct := false
	move := -4.2
	return models.AuthorHistoryRecord{
		ID:           "rec-1",
		AuthorKey:    models.AuthorKey(key),
		Company:      "Acme Corp",
		Symbol:       "ACME.US",
		EventDate:    time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		EventKey:     "ACME.US:2025-02-10",
		Sentiment:    models.SentimentBullish,
		Prediction:   models.PredictionBeat,
		Confidence:   models.ConfidenceHigh,
		Type:         models.ContrarianSentimentOnly,
		Score:        95.0,
		Correct:      &correct,
		ActualResult: models.OutcomeMiss,
		PriceMovePct: &move,
		Reasoning:    "minority bullish at 0.20 share",
		RecordedAt:   time.Date(2025, 2, 12, 9, 0, 0, 0, time.UTC),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err, "open exported CSV")
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err, "parse exported CSV")
	return rows
}

func TestWriteMasterCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master_contrarian_database.csv")

	noRate := ledgerEntry("john_writer")
	noRate.DisplayName = "John Writer"
	noRate.SuccessRate = nil
	noRate.SuccessfulCalls = 0
	noRate.FailedCalls = 0
	noRate.ContrarianInstances = 1
	noRate.LatestCorrect = nil
	noRate.LatestType = models.ContrarianPredictionOnly

	err := WriteMasterCSV(path, []models.AuthorLedgerEntry{ledgerEntry("jane_analyst"), noRate})
	require.NoError(t, err, "WriteMasterCSV")

	rows := readCSV(t, path)
	require.Len(t, rows, 3, "header plus two entries")
	assert.Equal(t, masterHeader, rows[0])
	require.Len(t, rows[0], 22, "master layout is 22 columns")

	jane := rows[1]
	assert.Equal(t, "jane_analyst", jane[0])
	assert.Equal(t, "Jane Analyst", jane[1])
	assert.Equal(t, "2025-01-05", jane[2])
	assert.Equal(t, "4", jane[4], "Total_Earnings_Calls")
	assert.Equal(t, "2", jane[5], "Total_Companies_Covered")
	assert.Equal(t, "50.0", jane[9], "Contrarian_Success_Rate")
	assert.Equal(t, "Acme Corp;Globex", jane[12], "Companies_List")
	assert.Equal(t, "both", jane[16], "Latest_Contrarian_Type")
	assert.Equal(t, "true", jane[17], "Latest_Was_Correct")
	assert.Equal(t, "1", jane[18], "Repeat_Contrarian_Count")
	assert.Equal(t, "medium", jane[20], "Risk_Level")

	john := rows[2]
	assert.Equal(t, "", john[9], "unresolved success rate stays blank")
	assert.Equal(t, "unknown", john[17], "unresolved latest correctness")
	assert.Equal(t, "0", john[18], "single instance has no repeats")
}

func TestWriteAuthorHistoryCSV(t *testing.T) {
	dir := t.TempDir()
	entry := ledgerEntry("jane_analyst")
	path := filepath.Join(dir, HistoryFileName(entry.Key))
	assert.Equal(t, "jane_analyst_history.csv", filepath.Base(path))

	err := WriteAuthorHistoryCSV(path, entry, []models.AuthorHistoryRecord{historyRecord("jane_analyst")})
	require.NoError(t, err, "WriteAuthorHistoryCSV")

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, historyHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "Jane Analyst", row[1])
	assert.Equal(t, "2025-02-10", row[4], "Earnings_Date")
	assert.Equal(t, "bullish", row[5])
	assert.Equal(t, "beat", row[6])
	assert.Equal(t, "sentiment_only", row[8])
	assert.Equal(t, "true", row[10], "Was_Minority_Sentiment from type")
	assert.Equal(t, "false", row[11], "Was_Minority_Prediction from type")
	assert.Equal(t, "false", row[12], "Was_Correct")
	assert.Equal(t, "miss", row[13], "Actual_Result")
	assert.Equal(t, "-4.20", row[14], "Price_Move_Pct")
}

func TestWriteFindingsCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "findings.csv")

	finding := models.ContrarianFinding{
		ID:                   "f-1",
		EventKey:             "ACME.US:2025-02-10",
		Company:              "Acme Corp",
		Symbol:               "ACME.US",
		EventDate:            time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		Author:               "Jane Analyst",
		AuthorKey:            "jane_analyst",
		Sentiment:            models.SentimentBullish,
		Prediction:           models.PredictionBeat,
		SentimentShare:       0.2,
		PredictionShare:      0.4,
		WasMinoritySentiment: true,
		IsContrarian:         true,
		Type:                 models.ContrarianSentimentOnly,
		Score:                95.0,
		ActualResult:         models.OutcomeUnknown,
		SourceID:             "https://gu.com/p/a1",
		EvaluatedAt:          time.Date(2025, 2, 12, 9, 0, 0, 0, time.UTC),
	}

	err := WriteFindingsCSV(path, []models.ContrarianFinding{finding})
	require.NoError(t, err, "WriteFindingsCSV")

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, findingsHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "0.200", row[9], "Sentiment_Share")
	assert.Equal(t, "true", row[13], "Is_Contrarian")
	assert.Equal(t, "unknown", row[16], "Was_Correct without outcome")
	assert.Equal(t, "unknown", row[17], "Actual_Result without outcome")
	assert.Equal(t, "", row[18], "Price_Move_Pct blank without outcome")
}

func TestRunWriter_WriteRun(t *testing.T) {
	base := t.TempDir()
	writer := NewRunWriter(base, nil)

	summary := RunSummary{
		StartedAt:         time.Date(2025, 2, 12, 9, 0, 0, 0, time.UTC),
		FinishedAt:        time.Date(2025, 2, 12, 9, 5, 0, 0, time.UTC),
		DurationSeconds:   300,
		Events:            []string{"ACME.US:2025-02-10"},
		ArticlesProcessed: 12,
		OpinionsEvaluated: 5,
		ContrariansFound:  2,
		Version:           "1.0",
	}

	dir, err := writer.WriteRun(summary, nil, []models.AuthorLedgerEntry{ledgerEntry("jane_analyst")})
	require.NoError(t, err, "WriteRun")

	folder := filepath.Base(dir)
	assert.True(t, strings.HasPrefix(folder, "run_20250212_090000_"), "folder %q should carry the start stamp", folder)
	require.Len(t, folder, len("run_20060102_150405_")+8, "folder suffix is the 8-char run id")

	for _, name := range []string{"findings.csv", "master_ledger.csv", "metadata.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s in run folder", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)

	var meta RunSummary
	require.NoError(t, json.Unmarshal(data, &meta), "metadata.json parses back")
	assert.NotEmpty(t, meta.RunID, "run id generated")
	assert.Equal(t, 12, meta.ArticlesProcessed)
	assert.Equal(t, []string{"findings.csv", "master_ledger.csv", "metadata.json"}, meta.OutputFiles)
	assert.NotNil(t, meta.Errors, "errors list serialized as empty array")
}
