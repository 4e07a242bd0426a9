package grade

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the students table. Execute it via
// [PostgresBook.Migrate] or apply it manually during deployment.
//
// The serial id column preserves enrollment order, which is the roster
// order used for stable fuzzy tie-breaks.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    correct    INTEGER NOT NULL DEFAULT 0,
    wrong      INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresBook]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresBook is a [Book] backed by a PostgreSQL students table.
type PostgresBook struct {
	db DB
}

// Compile-time interface check.
var _ Book = (*PostgresBook)(nil)

// NewPostgresBook creates a [PostgresBook] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresBook.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresBook(db DB) *PostgresBook {
	return &PostgresBook{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// students table if it does not already exist.
func (b *PostgresBook) Migrate(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("grade: migrate: %w", err)
	}
	return nil
}

// Enroll inserts a new student with zeroed counters. Enrolling an existing
// name is an error — counters must never be silently reset.
func (b *PostgresBook) Enroll(ctx context.Context, name string) error {
	const query = `INSERT INTO students (name) VALUES ($1)`
	if _, err := b.db.Exec(ctx, query, name); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("grade: student %q already enrolled", name)
		}
		return fmt.Errorf("grade: enroll %q: %w", name, err)
	}
	return nil
}

// Names implements [Book.Names]. Order follows enrollment.
func (b *PostgresBook) Names(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM students ORDER BY id`
	rows, err := b.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("grade: list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("grade: scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("grade: list names: %w", err)
	}
	return names, nil
}

// Record implements [Book.Record].
func (b *PostgresBook) Record(ctx context.Context, name string) (StudentRecord, error) {
	const query = `SELECT name, correct, wrong FROM students WHERE name = $1`

	var r StudentRecord
	err := b.db.QueryRow(ctx, query, name).Scan(&r.Name, &r.Correct, &r.Wrong)
	if errors.Is(err, pgx.ErrNoRows) {
		return StudentRecord{}, ErrNotFound
	}
	if err != nil {
		return StudentRecord{}, fmt.Errorf("grade: record %q: %w", name, err)
	}
	return r, nil
}

// Adjust implements [Book.Adjust]. The update and the returned totals are a
// single statement, so concurrent adjustments never lose increments.
func (b *PostgresBook) Adjust(ctx context.Context, name string, correctDelta, wrongDelta int) (StudentRecord, error) {
	const query = `
		UPDATE students
		SET correct = correct + $2, wrong = wrong + $3, updated_at = now()
		WHERE name = $1
		RETURNING name, correct, wrong`

	var r StudentRecord
	err := b.db.QueryRow(ctx, query, name, correctDelta, wrongDelta).Scan(&r.Name, &r.Correct, &r.Wrong)
	if errors.Is(err, pgx.ErrNoRows) {
		return StudentRecord{}, ErrNotFound
	}
	if err != nil {
		return StudentRecord{}, fmt.Errorf("grade: adjust %q: %w", name, err)
	}
	return r, nil
}

// Stats implements [Book.Stats].
func (b *PostgresBook) Stats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT COUNT(*), COALESCE(SUM(correct), 0), COALESCE(SUM(wrong), 0)
		FROM students`

	var s Stats
	if err := b.db.QueryRow(ctx, query).Scan(&s.Students, &s.TotalCorrect, &s.TotalWrong); err != nil {
		return Stats{}, fmt.Errorf("grade: stats: %w", err)
	}
	if s.Students > 0 {
		s.AvgCorrect = float64(s.TotalCorrect) / float64(s.Students)
		s.AvgWrong = float64(s.TotalWrong) / float64(s.Students)
	}
	return s, nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-violation
// error (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
