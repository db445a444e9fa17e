// Package query provides the read-side views over the ledger: ranked
// top performers, repeat contrarians, and per-author history. All
// operations are pure reads and tolerate an empty ledger.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/contraledger/internal/ledger"
	"github.com/rewired-gh/contraledger/internal/models"
)

// SortField names a numeric ledger field entries can be ranked by.
type SortField string

const (
	SortBySuccessRate  SortField = "success_rate"
	SortByTotalScore   SortField = "total_score"
	SortByAverageScore SortField = "average_score"
	SortByInstances    SortField = "instances"
	SortByConsistency  SortField = "consistency"
	SortByAppearances  SortField = "appearances"
)

var sortFields = []SortField{
	SortBySuccessRate,
	SortByTotalScore,
	SortByAverageScore,
	SortByInstances,
	SortByConsistency,
	SortByAppearances,
}

// ParseSortField resolves a user-supplied field name.
func ParseSortField(raw string) (SortField, error) {
	field := SortField(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range sortFields {
		if field == known {
			return field, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q, valid fields: %s", raw, joinFields())
}

func joinFields() string {
	names := make([]string, len(sortFields))
	for i, f := range sortFields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// AuthorHistory joins an author's aggregate entry with their full
// append-only log. Entry is nil for authors the ledger has never seen.
type AuthorHistory struct {
	Entry   *models.AuthorLedgerEntry
	Records []models.AuthorHistoryRecord
}

// Service answers read queries from a ledger store.
type Service struct {
	store ledger.Store
}

// New creates a query service over the given store.
func New(store ledger.Store) *Service {
	return &Service{store: store}
}

// Top returns up to limit entries ranked descending by the given field.
// Entries without a value for the field (an unresolved success rate)
// rank after every valued entry; ties break by author key so rankings
// are stable across runs.
func (s *Service) Top(limit int, field SortField) ([]models.AuthorLedgerEntry, error) {
	if _, err := ParseSortField(string(field)); err != nil {
		return nil, err
	}
	entries, err := s.store.All()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, aOK := fieldValue(entries[i], field)
		b, bOK := fieldValue(entries[j], field)
		if aOK != bOK {
			return aOK
		}
		if a != b {
			return a > b
		}
		return entries[i].Key < entries[j].Key
	})

	if limit >= 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// Repeat returns authors with at least minInstances contrarian calls,
// most frequent first.
func (s *Service) Repeat(minInstances int) ([]models.AuthorLedgerEntry, error) {
	entries, err := s.store.All()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	repeat := entries[:0:0]
	for _, entry := range entries {
		if entry.ContrarianInstances >= minInstances {
			repeat = append(repeat, entry)
		}
	}
	sort.Slice(repeat, func(i, j int) bool {
		if repeat[i].ContrarianInstances != repeat[j].ContrarianInstances {
			return repeat[i].ContrarianInstances > repeat[j].ContrarianInstances
		}
		return repeat[i].Key < repeat[j].Key
	})
	return repeat, nil
}

// History looks up one author's aggregate and full log. The identity
// may be a raw byline or an already-normalized key. Unknown authors
// yield an empty result, not an error.
func (s *Service) History(identity string) (AuthorHistory, error) {
	key := models.NormalizeAuthor(identity)

	var result AuthorHistory
	entry, err := s.store.Get(key)
	switch {
	case err == nil:
		result.Entry = entry
	case errors.Is(err, ledger.ErrNotFound):
		// Fall through with a nil entry.
	default:
		return AuthorHistory{}, fmt.Errorf("reading ledger entry for %s: %w", key, err)
	}

	records, err := s.store.History(key)
	if err != nil {
		return AuthorHistory{}, fmt.Errorf("reading history for %s: %w", key, err)
	}
	result.Records = records
	return result, nil
}

// fieldValue extracts the ranking value for a field. The second return
// is false when the entry has no value for it.
func fieldValue(entry models.AuthorLedgerEntry, field SortField) (float64, bool) {
	switch field {
	case SortBySuccessRate:
		if entry.SuccessRate == nil {
			return 0, false
		}
		return *entry.SuccessRate, true
	case SortByTotalScore:
		return entry.TotalScore, true
	case SortByAverageScore:
		return entry.AverageScore, true
	case SortByInstances:
		return float64(entry.ContrarianInstances), true
	case SortByConsistency:
		return entry.ConsistencyScore, true
	case SortByAppearances:
		return float64(entry.TotalAppearances), true
	default:
		return 0, false
	}
}
