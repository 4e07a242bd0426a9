// Package grade provides the gradebook collaborator: the store that supplies
// the roster's display names and absorbs counter updates for matched
// students.
//
// The resolution engine only ever reads names from a [Book]; counter updates
// happen strictly after a confirmed match. Ambiguous and unmatched outcomes
// never touch the gradebook.
//
// Three implementations are provided: [MemBook] for tests and trials,
// [FileBook] backed by a YAML file, and [PostgresBook] backed by a students
// table. All are safe for concurrent use.
package grade

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Record and Adjust when the named student does
// not exist in the gradebook.
var ErrNotFound = errors.New("grade: student not found")

// StudentRecord is one gradebook row: a student and their running counters.
type StudentRecord struct {
	Name    string `yaml:"name" json:"name"`
	Correct int    `yaml:"correct" json:"correct"`
	Wrong   int    `yaml:"wrong" json:"wrong"`
}

// Stats summarises the gradebook.
type Stats struct {
	Students     int     `json:"students"`
	TotalCorrect int     `json:"total_correct"`
	TotalWrong   int     `json:"total_wrong"`
	AvgCorrect   float64 `json:"avg_correct"`
	AvgWrong     float64 `json:"avg_wrong"`
}

// Book is the gradebook store.
//
// All implementations must be safe for concurrent use.
type Book interface {
	// Names returns every student's display name in gradebook order. The
	// order is significant: it is the roster order used for stable
	// tie-breaks during fuzzy matching.
	Names(ctx context.Context) ([]string, error)

	// Record returns the current counters for a student.
	// Returns [ErrNotFound] when the student does not exist.
	Record(ctx context.Context, name string) (StudentRecord, error)

	// Adjust adds the deltas to a student's counters and returns the new
	// totals. Deltas may be negative (corrections).
	// Returns [ErrNotFound] when the student does not exist.
	Adjust(ctx context.Context, name string, correctDelta, wrongDelta int) (StudentRecord, error)

	// Stats returns summary statistics over the whole gradebook.
	Stats(ctx context.Context) (Stats, error)
}

// statsOf computes [Stats] from a record slice. Shared by the in-memory
// backends.
func statsOf(records []StudentRecord) Stats {
	s := Stats{Students: len(records)}
	for _, r := range records {
		s.TotalCorrect += r.Correct
		s.TotalWrong += r.Wrong
	}
	if s.Students > 0 {
		s.AvgCorrect = float64(s.TotalCorrect) / float64(s.Students)
		s.AvgWrong = float64(s.TotalWrong) / float64(s.Students)
	}
	return s
}
