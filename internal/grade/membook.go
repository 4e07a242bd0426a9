package grade

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time assertion that MemBook satisfies the Book interface.
var _ Book = (*MemBook)(nil)

// MemBook is a thread-safe, in-memory [Book]. Nothing survives a restart;
// it is suitable for tests and trial runs.
type MemBook struct {
	mu      sync.RWMutex
	order   []string
	records map[string]StudentRecord
}

// NewMemBook returns a [MemBook] seeded with records, preserving their
// order. Duplicate names are rejected — the roster build would fail on them
// anyway, and failing here keeps the error close to its source.
func NewMemBook(records []StudentRecord) (*MemBook, error) {
	b := &MemBook{
		order:   make([]string, 0, len(records)),
		records: make(map[string]StudentRecord, len(records)),
	}
	for i, r := range records {
		if _, exists := b.records[r.Name]; exists {
			return nil, fmt.Errorf("grade: records[%d]: duplicate student %q", i, r.Name)
		}
		b.order = append(b.order, r.Name)
		b.records[r.Name] = r
	}
	return b, nil
}

// Names implements [Book.Names].
func (b *MemBook) Names(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.order))
	copy(out, b.order)
	return out, nil
}

// Record implements [Book.Record].
func (b *MemBook) Record(ctx context.Context, name string) (StudentRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.records[name]
	if !ok {
		return StudentRecord{}, ErrNotFound
	}
	return r, nil
}

// Adjust implements [Book.Adjust].
func (b *MemBook) Adjust(ctx context.Context, name string, correctDelta, wrongDelta int) (StudentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.records[name]
	if !ok {
		return StudentRecord{}, ErrNotFound
	}
	r.Correct += correctDelta
	r.Wrong += wrongDelta
	b.records[name] = r
	return r, nil
}

// Stats implements [Book.Stats].
func (b *MemBook) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := make([]StudentRecord, 0, len(b.order))
	for _, name := range b.order {
		records = append(records, b.records[name])
	}
	return statsOf(records), nil
}
