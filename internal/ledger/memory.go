package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/models"
)

const (
	persistenceVersion = "1.0"

	ledgerFilePermissions os.FileMode = 0o600
	ledgerDirPermissions  os.FileMode = 0o700
)

// persistenceFile is the on-disk layout of a JSON-backed ledger.
type persistenceFile struct {
	Version string    `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	Entries map[models.AuthorKey]models.AuthorLedgerEntry     `json:"entries"`
	History map[models.AuthorKey][]models.AuthorHistoryRecord `json:"history"`
}

// MemoryStore is a thread-safe in-memory Store with optional JSON file
// persistence. With a file path it reloads state on open and rewrites
// the whole file atomically (write-temp-then-rename) on every committed
// batch; with an empty path it is purely ephemeral, which the tests and
// read-only commands rely on.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[models.AuthorKey]models.AuthorLedgerEntry
	history map[models.AuthorKey][]models.AuthorHistoryRecord

	filePath string
	log      arbor.ILogger
}

// NewMemoryStore opens a memory store, restoring any previously persisted
// state from filePath. A malformed file yields a CorruptionError; the
// store refuses to start on top of data it cannot trust.
func NewMemoryStore(filePath string, log arbor.ILogger) (*MemoryStore, error) {
	s := &MemoryStore{
		entries:  make(map[models.AuthorKey]models.AuthorLedgerEntry),
		history:  make(map[models.AuthorKey][]models.AuthorHistoryRecord),
		filePath: filePath,
		log:      log,
	}
	if filePath != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns a detached copy of the entry for key, or ErrNotFound.
func (s *MemoryStore) Get(key models.AuthorKey) (*models.AuthorLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil, ErrNotFound
	}
	clone := cloneEntry(entry)
	return &clone, nil
}

// All returns detached copies of every entry, ordered by author key.
func (s *MemoryStore) All() ([]models.AuthorLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.AuthorLedgerEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, cloneEntry(entry))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// History returns the author's history records in recorded order.
func (s *MemoryStore) History(key models.AuthorKey) ([]models.AuthorHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.history[key]
	out := make([]models.AuthorHistoryRecord, len(records))
	copy(out, records)
	return out, nil
}

// ApplyBatch upserts entries and appends history records as one unit.
// The next state is staged on copies and persisted before it becomes
// visible, so a failed write leaves both memory and disk unchanged.
func (s *MemoryStore) ApplyBatch(entries []models.AuthorLedgerEntry, records []models.AuthorHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextEntries := make(map[models.AuthorKey]models.AuthorLedgerEntry, len(s.entries)+len(entries))
	for key, entry := range s.entries {
		nextEntries[key] = entry
	}
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("invalid ledger entry %s: %w", entry.Key, err)
		}
		nextEntries[entry.Key] = cloneEntry(entry)
	}

	nextHistory := make(map[models.AuthorKey][]models.AuthorHistoryRecord, len(s.history)+len(records))
	for key, existing := range s.history {
		nextHistory[key] = existing
	}
	touched := make(map[models.AuthorKey]bool)
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("invalid history record %s: %w", record.ID, err)
		}
		if !touched[record.AuthorKey] {
			existing := nextHistory[record.AuthorKey]
			detached := make([]models.AuthorHistoryRecord, len(existing), len(existing)+1)
			copy(detached, existing)
			nextHistory[record.AuthorKey] = detached
			touched[record.AuthorKey] = true
		}
		nextHistory[record.AuthorKey] = append(nextHistory[record.AuthorKey], record)
	}

	if s.filePath != "" {
		if err := persist(s.filePath, nextEntries, nextHistory); err != nil {
			return err
		}
	}
	s.entries = nextEntries
	s.history = nextHistory
	return nil
}

// Close flushes the current state to disk when persistence is enabled.
func (s *MemoryStore) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.filePath == "" {
		return nil
	}
	return persist(s.filePath, s.entries, s.history)
}

// persist writes the ledger state to a temporary file and renames it over
// the target, so readers never observe a half-written ledger.
func persist(filePath string, entries map[models.AuthorKey]models.AuthorLedgerEntry, history map[models.AuthorKey][]models.AuthorHistoryRecord) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, ledgerDirPermissions); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data := persistenceFile{
		Version: persistenceVersion,
		SavedAt: time.Now().UTC(),
		Entries: entries,
		History: history,
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, ledgerFilePermissions); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// load restores state from the persistence file, tolerating a missing
// file but not a malformed one.
func (s *MemoryStore) load() error {
	// Remove any temp file a previous crash left behind.
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
		s.log.Warn().Str("path", tempPath).Msg("Removed stale ledger temp file")
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	var data persistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return &CorruptionError{Path: s.filePath, Err: err}
	}

	s.entries = data.Entries
	if s.entries == nil {
		s.entries = make(map[models.AuthorKey]models.AuthorLedgerEntry)
	}
	s.history = data.History
	if s.history == nil {
		s.history = make(map[models.AuthorKey][]models.AuthorHistoryRecord)
	}

	s.log.Debug().
		Str("path", s.filePath).
		Int("authors", len(s.entries)).
		Msg("Ledger state restored")
	return nil
}

// cloneEntry copies an entry deeply enough that callers can mutate the
// result without reaching back into the store's state.
func cloneEntry(entry models.AuthorLedgerEntry) models.AuthorLedgerEntry {
	clone := entry
	if entry.RawNames != nil {
		clone.RawNames = make([]string, len(entry.RawNames))
		copy(clone.RawNames, entry.RawNames)
	}
	if entry.Companies != nil {
		clone.Companies = make([]string, len(entry.Companies))
		copy(clone.Companies, entry.Companies)
	}
	if entry.SuccessRate != nil {
		rate := *entry.SuccessRate
		clone.SuccessRate = &rate
	}
	if entry.LatestCorrect != nil {
		correct := *entry.LatestCorrect
		clone.LatestCorrect = &correct
	}
	return clone
}
