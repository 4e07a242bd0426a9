// Package roster holds the immutable index of known student names that the
// resolution pipeline matches against.
//
// An [Index] is built once from the gradebook's display names and is
// read-only afterwards — all lookup methods are safe for concurrent use
// without locking. Reloading the roster means building a fresh Index and
// publishing it through a [Handle]; in-flight readers keep the snapshot they
// started with.
package roster

import (
	"errors"
	"fmt"
	"strings"
)

// Entry is one roster member: the display name as it appears in the
// gradebook and its precomputed phonetic key. Entries are immutable.
type Entry struct {
	// Name is the display name, non-empty, unique within the roster.
	Name string `json:"name"`

	// Key is the canonical phonetic key of Name, computed once at build time.
	Key string `json:"key"`
}

// KeyFunc produces the canonical phonetic key for a display name.
type KeyFunc func(string) string

// Index is an immutable lookup structure over roster entries.
// All methods are safe for concurrent use.
type Index struct {
	entries []Entry
	byFold  map[string]int // folded display name → entries index
	byKey   map[string][]int
}

// Build validates names, computes phonetic keys via keyFn, and returns an
// immutable [Index]. Entry order follows the input order.
//
// Build fails — returning a joined error listing every problem — when a name
// is empty after whitespace normalization, when two names collide
// case/whitespace-insensitively, or when a name produces an empty phonetic
// key. A failed build constructs no index; the roster is either fully valid
// or absent.
func Build(names []string, keyFn KeyFunc) (*Index, error) {
	if keyFn == nil {
		return nil, errors.New("roster: key function must not be nil")
	}

	idx := &Index{
		entries: make([]Entry, 0, len(names)),
		byFold:  make(map[string]int, len(names)),
		byKey:   make(map[string][]int, len(names)),
	}

	var errs []error
	for i, raw := range names {
		name := strings.Join(strings.Fields(raw), " ")
		if name == "" {
			errs = append(errs, fmt.Errorf("names[%d] is empty", i))
			continue
		}

		folded := fold(name)
		if prev, ok := idx.byFold[folded]; ok {
			errs = append(errs, fmt.Errorf("names[%d] %q duplicates names entry %q", i, name, idx.entries[prev].Name))
			continue
		}

		key := keyFn(name)
		if key == "" {
			errs = append(errs, fmt.Errorf("names[%d] %q produces an empty phonetic key", i, name))
			continue
		}

		pos := len(idx.entries)
		idx.entries = append(idx.entries, Entry{Name: name, Key: key})
		idx.byFold[folded] = pos
		idx.byKey[key] = append(idx.byKey[key], pos)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("roster: build: %w", errors.Join(errs...))
	}
	return idx, nil
}

// Len returns the number of roster entries.
func (idx *Index) Len() int { return len(idx.entries) }

// All returns every entry in roster order. The returned slice is a copy;
// callers may not mutate the index through it.
func (idx *Index) All() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// FindExact looks up an entry by display name, ignoring case and
// whitespace differences. Display names are unique, so at most one entry
// can match.
func (idx *Index) FindExact(name string) (Entry, bool) {
	pos, ok := idx.byFold[fold(name)]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[pos], true
}

// FindPhoneticExact returns all entries whose phonetic key equals key, in
// roster order. Distinct students may share a key (homophones), so the
// result is a list — callers must not assume a single hit.
func (idx *Index) FindPhoneticExact(key string) []Entry {
	positions, ok := idx.byKey[key]
	if !ok {
		return nil
	}
	out := make([]Entry, len(positions))
	for i, pos := range positions {
		out[i] = idx.entries[pos]
	}
	return out
}

// FindPhoneticContains returns all entries whose phonetic key contains key
// as a substring or is contained by key (symmetric containment), in roster
// order. Entries whose key equals key exactly are excluded — those belong
// to [Index.FindPhoneticExact]. An empty key matches nothing.
func (idx *Index) FindPhoneticContains(key string) []Entry {
	if key == "" {
		return nil
	}
	var out []Entry
	for _, e := range idx.entries {
		if e.Key == key {
			continue
		}
		if strings.Contains(e.Key, key) || strings.Contains(key, e.Key) {
			out = append(out, e)
		}
	}
	return out
}

// fold canonicalizes a display name for exact lookup: lowercase with all
// whitespace removed.
func fold(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
