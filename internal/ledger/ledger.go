// Package ledger maintains the durable per-author performance record.
// Each processing batch is folded into long-lived aggregates through an
// additive merge: every finding is applied exactly once, counters only
// grow, and the per-author history log is append-only.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/models"
)

// MergeStats summarizes what one merge changed. Every contrarian
// finding applied also appended one history record.
type MergeStats struct {
	FindingsApplied int
	ContrarianCount int
	EntriesCreated  int
	EntriesUpdated  int
	Collisions      int
}

// Ledger folds evaluated findings into per-author aggregates backed by a
// Store. Merges are serialized by an internal lock; the design assumes a
// single writer process and makes the lost-update window explicit here
// instead of leaving it to callers.
type Ledger struct {
	mu    sync.Mutex
	store Store
	log   arbor.ILogger
}

// New creates a Ledger on top of the given store.
func New(store Store, log arbor.ILogger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Store exposes the underlying store for read-side consumers.
func (l *Ledger) Store() Store {
	return l.store
}

// Merge applies a batch of findings to the ledger.
//
// Every finding counts toward its author's appearance total; contrarian
// findings additionally update instance counters, success statistics,
// scores, latest-event fields, and append a history record. Findings that
// aligned with the consensus leave no history row.
//
// The merge is additive, not idempotent: presenting the same finding
// twice increments counters twice. Callers own exactly-once delivery.
// Staging happens in memory and is committed through a single
// Store.ApplyBatch call, so a failed merge leaves the ledger untouched.
func (l *Ledger) Merge(findings []models.ContrarianFinding) (MergeStats, error) {
	var stats MergeStats
	if len(findings) == 0 {
		return stats, nil
	}
	for i := range findings {
		if err := findings[i].Validate(); err != nil {
			return stats, fmt.Errorf("finding %d: %w", i, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	staged := make(map[models.AuthorKey]*models.AuthorLedgerEntry)
	created := make(map[models.AuthorKey]bool)
	var records []models.AuthorHistoryRecord

	for _, finding := range findings {
		key := finding.AuthorKey
		if key == "" {
			key = models.NormalizeAuthor(finding.Author)
		}

		entry, ok := staged[key]
		if !ok {
			existing, err := l.store.Get(key)
			switch {
			case err == nil:
				entry = existing
			case errors.Is(err, ErrNotFound):
				entry = &models.AuthorLedgerEntry{
					Key:         key,
					DisplayName: finding.Author,
					RawNames:    []string{finding.Author},
					FirstSeen:   finding.EvaluatedAt,
					LastSeen:    finding.EvaluatedAt,
				}
				created[key] = true
				stats.EntriesCreated++
			default:
				return MergeStats{}, fmt.Errorf("loading ledger entry for %s: %w", key, err)
			}
			staged[key] = entry
		}

		l.noteSpelling(entry, finding.Author, &stats)
		applyFinding(entry, finding, now, created[key] && entry.TotalAppearances == 0)

		stats.FindingsApplied++
		if finding.IsContrarian {
			stats.ContrarianCount++
			records = append(records, historyRecord(finding, key, now))
		}
	}

	entries := make([]models.AuthorLedgerEntry, 0, len(staged))
	for _, entry := range staged {
		if err := entry.Validate(); err != nil {
			return MergeStats{}, fmt.Errorf("merged entry %s: %w", entry.Key, err)
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	if err := l.store.ApplyBatch(entries, records); err != nil {
		return MergeStats{}, fmt.Errorf("committing merge: %w", err)
	}

	stats.EntriesUpdated = len(entries) - stats.EntriesCreated
	l.log.Info().
		Int("findings", stats.FindingsApplied).
		Int("contrarian", stats.ContrarianCount).
		Int("created", stats.EntriesCreated).
		Int("updated", stats.EntriesUpdated).
		Msg("Ledger merge committed")
	return stats, nil
}

// noteSpelling records a raw byline spelling on the entry. A new spelling
// on an existing entry means two differently-written names normalized to
// the same key, which is surfaced as a warning rather than silently merged.
func (l *Ledger) noteSpelling(entry *models.AuthorLedgerEntry, raw string, stats *MergeStats) {
	for _, name := range entry.RawNames {
		if name == raw {
			return
		}
	}
	entry.RawNames = append(entry.RawNames, raw)
	sort.Strings(entry.RawNames)
	stats.Collisions++
	l.log.Warn().
		Str("author_key", string(entry.Key)).
		Str("display_name", entry.DisplayName).
		Str("new_spelling", raw).
		Msg("Distinct author spellings merged under one identity")
}

// applyFinding runs the per-finding merge steps on a staged entry.
// isFirst marks the apply that created the entry; it gets the "new"
// risk tier instead of a recomputed one.
func applyFinding(entry *models.AuthorLedgerEntry, f models.ContrarianFinding, now time.Time, isFirst bool) {
	entry.TotalAppearances++
	if f.EvaluatedAt.After(entry.LastSeen) {
		entry.LastSeen = f.EvaluatedAt
	}
	if f.Company != "" {
		entry.Companies = insertSorted(entry.Companies, f.Company)
	}

	if f.IsContrarian {
		entry.ContrarianInstances++
		if f.Correct != nil {
			if *f.Correct {
				entry.SuccessfulCalls++
			} else {
				entry.FailedCalls++
			}
		}
		if resolved := entry.SuccessfulCalls + entry.FailedCalls; resolved > 0 {
			rate := float64(entry.SuccessfulCalls) / float64(resolved) * 100
			entry.SuccessRate = &rate
		}
		entry.TotalScore += f.Score
		entry.AverageScore = entry.TotalScore / float64(entry.ContrarianInstances)

		entry.LatestCompany = f.Company
		entry.LatestSymbol = f.Symbol
		entry.LatestEventDate = f.EventDate
		entry.LatestType = f.Type
		entry.LatestCorrect = f.Correct
	}

	entry.ConsistencyScore = float64(entry.ContrarianInstances) / float64(entry.TotalAppearances) * 100
	if isFirst {
		entry.RiskTier = models.RiskNew
	} else {
		entry.RiskTier = RiskFor(entry.SuccessRate, entry.ContrarianInstances, entry.ConsistencyScore)
	}
	entry.UpdatedAt = now
}

func historyRecord(f models.ContrarianFinding, key models.AuthorKey, now time.Time) models.AuthorHistoryRecord {
	return models.AuthorHistoryRecord{
		ID:           f.ID,
		AuthorKey:    key,
		Company:      f.Company,
		Symbol:       f.Symbol,
		EventDate:    f.EventDate,
		EventKey:     f.EventKey,
		Sentiment:    f.Sentiment,
		Prediction:   f.Prediction,
		Confidence:   f.Confidence,
		Type:         f.Type,
		Score:        f.Score,
		Correct:      f.Correct,
		ActualResult: f.ActualResult,
		PriceMovePct: f.PriceMovePct,
		Reasoning:    f.Reasoning,
		SourceID:     f.SourceID,
		RecordedAt:   now,
	}
}

func insertSorted(set []string, v string) []string {
	i := sort.SearchStrings(set, v)
	if i < len(set) && set[i] == v {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = v
	return set
}
