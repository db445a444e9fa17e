// Package badger implements the ledger store on a Badger key-value
// database via badgerhold. Entries are keyed by normalized author key;
// history records get a fresh storage key per append so the log stays
// strictly additive even when the same finding ID reappears.
package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/rewired-gh/contraledger/internal/ledger"
	"github.com/rewired-gh/contraledger/internal/models"
)

// Store implements ledger.Store on Badger.
type Store struct {
	store *badgerhold.Store
	path  string
	log   arbor.ILogger
}

// Open opens (or creates) a Badger-backed ledger at path.
func Open(path string, log arbor.ILogger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opening Badger ledger database")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		// An existing database that cannot be opened is unsafe to merge
		// into; surface it as corruption rather than a transient failure.
		if entries, dirErr := os.ReadDir(path); dirErr == nil && len(entries) > 0 {
			return nil, &ledger.CorruptionError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Store{store: store, path: path, log: log}, nil
}

// Get returns the entry for an author key, or ledger.ErrNotFound.
func (s *Store) Get(key models.AuthorKey) (*models.AuthorLedgerEntry, error) {
	var entry models.AuthorLedgerEntry
	if err := s.store.Get(string(key), &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load ledger entry %s: %w", key, err)
	}
	return &entry, nil
}

// All returns every ledger entry ordered by author key.
func (s *Store) All() ([]models.AuthorLedgerEntry, error) {
	var entries []models.AuthorLedgerEntry
	query := badgerhold.Where("Key").Ne(models.AuthorKey("")).SortBy("Key")
	if err := s.store.Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	if entries == nil {
		entries = []models.AuthorLedgerEntry{}
	}
	return entries, nil
}

// History returns the author's history records ordered by recording
// time, oldest first. Records committed in the same batch share a
// timestamp; ties order by event date, then record ID.
func (s *Store) History(key models.AuthorKey) ([]models.AuthorHistoryRecord, error) {
	var records []models.AuthorHistoryRecord
	if err := s.store.Find(&records, badgerhold.Where("AuthorKey").Eq(key)); err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", key, err)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		return a.ID < b.ID
	})
	if records == nil {
		records = []models.AuthorHistoryRecord{}
	}
	return records, nil
}

// ApplyBatch commits entry upserts and history appends in one Badger
// transaction. A failure inside the update function rolls back every
// write in the batch.
func (s *Store) ApplyBatch(entries []models.AuthorLedgerEntry, records []models.AuthorHistoryRecord) error {
	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, entry := range entries {
			if err := entry.Validate(); err != nil {
				return fmt.Errorf("invalid ledger entry %s: %w", entry.Key, err)
			}
			if err := s.store.TxUpsert(tx, string(entry.Key), entry); err != nil {
				return fmt.Errorf("failed to upsert entry %s: %w", entry.Key, err)
			}
		}
		for _, record := range records {
			if err := record.Validate(); err != nil {
				return fmt.Errorf("invalid history record %s: %w", record.ID, err)
			}
			if err := s.store.TxInsert(tx, uuid.NewString(), record); err != nil {
				return fmt.Errorf("failed to append history for %s: %w", record.AuthorKey, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger batch commit failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
