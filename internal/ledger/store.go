package ledger

import (
	"errors"
	"fmt"

	"github.com/rewired-gh/contraledger/internal/models"
)

// ErrNotFound is returned when no ledger entry exists for an author key.
var ErrNotFound = errors.New("author not found in ledger")

// CorruptionError reports a ledger that could be opened but not decoded.
// Merging into a corrupted ledger is never attempted; the caller must
// repair or discard the store first.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("ledger at %s is corrupted: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Store is the persistence boundary of the ledger. Implementations keep
// the author aggregate table and the append-only history log together so
// ApplyBatch can commit both atomically.
//
// Reads may run concurrently; ApplyBatch callers are expected to
// serialize themselves (the Ledger holds a single-writer lock).
type Store interface {
	// Get returns the entry for an author key, or ErrNotFound.
	Get(key models.AuthorKey) (*models.AuthorLedgerEntry, error)

	// All returns every ledger entry, ordered by author key. An empty
	// ledger yields an empty slice, not an error.
	All() ([]models.AuthorLedgerEntry, error)

	// History returns an author's append-only history records in the
	// order they were recorded. Unknown authors yield an empty slice.
	History(key models.AuthorKey) ([]models.AuthorHistoryRecord, error)

	// ApplyBatch upserts the given entries and appends the given history
	// records as one atomic unit. Either everything is persisted or
	// nothing is.
	ApplyBatch(entries []models.AuthorLedgerEntry, records []models.AuthorHistoryRecord) error

	// Close flushes and releases the underlying storage.
	Close() error
}
