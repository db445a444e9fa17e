package models

import "strings"

// AuthorKey is the normalized, stable identity a ledger entry is keyed by.
// Two differently-spelled bylines that normalize to the same key merge into
// one entry; the ledger logs a collision warning when that happens.
type AuthorKey string

var authorKeyReplacer = strings.NewReplacer(".", "", ",", "")

// NormalizeAuthor derives the stable ledger key for a raw byline: lowercase,
// surrounding whitespace trimmed, internal whitespace runs collapsed to a
// single underscore, periods and commas stripped. The format matches the
// ledger's historical on-disk key layout ("Dr. Jane  Smith" → "dr_jane_smith").
func NormalizeAuthor(raw string) AuthorKey {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	joined := strings.Join(strings.Fields(lowered), "_")
	return AuthorKey(authorKeyReplacer.Replace(joined))
}
