package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"roster/record"
)

// KeyField is the field queried in the store for duplicate keys.
const KeyField = "email"

// ErrStore marks failures of the backing store during ingestion. Nothing
// from the batch should be assumed committed.
var ErrStore = errors.New("ingest: store failure")

// Store is the part of the document store the pipeline needs.
type Store interface {
	// FindWhereFieldIn returns the stored records whose field equals one of
	// values. Each result carries at least that field.
	FindWhereFieldIn(ctx context.Context, field string, values []string) ([]record.Record, error)
	// InsertMany stores all records and returns how many were written.
	InsertMany(ctx context.Context, recs []record.Record) (int, error)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LooksLikeEmail reports whether s has the local@domain.tld shape.
func LooksLikeEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ExplicitEmailKey returns the lowercased "email" field when it holds a
// non-empty string.
func ExplicitEmailKey(r record.Record) (string, bool) {
	v, ok := r.Get(KeyField)
	if !ok {
		return "", false
	}
	s, ok := v.Str()
	s = strings.ToLower(strings.TrimSpace(s))
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ScanEmailKey returns the first string value, in field order, that looks
// like an email address.
func ScanEmailKey(r record.Record) (string, bool) {
	for _, f := range r.Fields() {
		s, ok := f.Value.Str()
		if !ok || !LooksLikeEmail(s) {
			continue
		}
		return strings.ToLower(strings.TrimSpace(s)), true
	}
	return "", false
}

// DuplicateKey derives the identity used for duplicate detection. An empty
// result means the record cannot be a duplicate.
func DuplicateKey(r record.Record) string {
	if k, ok := ExplicitEmailKey(r); ok {
		return k
	}
	if k, ok := ScanEmailKey(r); ok {
		return k
	}
	return ""
}

// Resolution is the outcome of duplicate resolution for one batch.
type Resolution struct {
	Accepted []record.Record
	Skipped  int
	// Keys is the number of distinct keys looked up.
	Keys int
}

// Resolve skips candidates whose key already exists in the store and
// batch-inserts the rest. The store sees one lookup and at most one insert.
// The lookup is not transactional with the insert: concurrent overlapping
// batches can both accept the same key.
func Resolve(ctx context.Context, st Store, candidates []record.Record) (Resolution, error) {
	keys := make([]string, len(candidates))
	distinct := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		keys[i] = DuplicateKey(c)
		if keys[i] != "" && !seen[keys[i]] {
			seen[keys[i]] = true
			distinct = append(distinct, keys[i])
		}
	}

	existing := make(map[string]bool)
	if len(distinct) > 0 {
		found, err := st.FindWhereFieldIn(ctx, KeyField, distinct)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: lookup existing keys: %w", ErrStore, err)
		}
		for _, r := range found {
			if v, ok := r.Get(KeyField); ok {
				if s := strings.ToLower(strings.TrimSpace(v.Text())); s != "" {
					existing[s] = true
				}
			}
		}
	}

	res := Resolution{Keys: len(distinct), Accepted: make([]record.Record, 0, len(candidates))}
	for i, c := range candidates {
		if keys[i] != "" && existing[keys[i]] {
			res.Skipped++
			continue
		}
		res.Accepted = append(res.Accepted, c)
	}

	if len(res.Accepted) == 0 {
		return res, nil
	}
	if _, err := st.InsertMany(ctx, res.Accepted); err != nil {
		return Resolution{}, fmt.Errorf("%w: insert %d records: %w", ErrStore, len(res.Accepted), err)
	}
	return res, nil
}
