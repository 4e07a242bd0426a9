// Package app wires the voicemark subsystems into one service: roster
// snapshots built from the gradebook, the tiered name resolver, grade counter
// updates, and the diagnostic record stream.
//
// The Service is the single entry point the HTTP layer talks to. For testing,
// inject doubles via functional options (WithResolver, WithMetrics, ...);
// when an option is not provided, New creates real implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/mingshi/voicemark/internal/grade"
	"github.com/mingshi/voicemark/internal/match"
	"github.com/mingshi/voicemark/internal/observe"
	"github.com/mingshi/voicemark/internal/phonetic"
	"github.com/mingshi/voicemark/internal/roster"
)

// batchConcurrency bounds parallel resolutions in a batch. Resolution is
// CPU-bound, so a small fan-out is enough.
const batchConcurrency = 4

// ErrNoRoster is returned when a resolution is attempted before the first
// successful [Service.Reload].
var ErrNoRoster = errors.New("app: no roster loaded")

// Report is one parsed utterance handed over by the upstream transcription
// and parsing stages: the student name as heard, plus the score deltas the
// parser extracted.
type Report struct {
	// Name is the transcribed student name, possibly noisy.
	Name string `json:"name"`

	// CorrectDelta and WrongDelta are the counter increments to apply when
	// the name resolves to exactly one student. Either may be negative.
	CorrectDelta int `json:"correct_delta"`
	WrongDelta   int `json:"wrong_delta"`
}

// Result is the outcome of processing one [Report]: the resolution verdict
// and, on a confirmed match, the student's updated counters.
type Result struct {
	Outcome match.Outcome        `json:"outcome"`
	Updated *grade.StudentRecord `json:"updated,omitempty"`
}

// Option is a functional option for [New]. Use these to inject test doubles.
type Option func(*Service)

// WithResolver injects a resolver instead of the default-configured one.
func WithResolver(r *match.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithMetrics injects a metrics set instead of building one from the global
// meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger injects the logger records are emitted to. Default: slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service owns the resolution pipeline and its collaborators.
type Service struct {
	book     grade.Book
	resolver *match.Resolver
	handle   *roster.Handle
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// New creates a Service over the given gradebook and performs the initial
// roster load. The gradebook is the single source of student names; the
// roster index is derived from it on every [Service.Reload].
func New(ctx context.Context, book grade.Book, opts ...Option) (*Service, error) {
	s := &Service{
		book:   book,
		handle: roster.NewHandle(nil),
	}
	for _, o := range opts {
		o(s)
	}
	if s.resolver == nil {
		s.resolver = match.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		s.metrics = m
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Roster exposes the snapshot handle, e.g. for readiness checks.
func (s *Service) Roster() *roster.Handle { return s.handle }

// Reload rebuilds the roster index from the gradebook's current names and
// publishes it atomically. In-flight resolutions keep the snapshot they
// started with.
func (s *Service) Reload(ctx context.Context) error {
	names, err := s.book.Names(ctx)
	if err != nil {
		return fmt.Errorf("app: reload roster: %w", err)
	}
	idx, err := roster.Build(names, phonetic.Key)
	if err != nil {
		return fmt.Errorf("app: reload roster: %w", err)
	}
	s.handle.Swap(idx)

	observe.NewRosterReloadRecord(idx.Len()).Emit(ctx, s.logger)
	s.metrics.RosterSize.Record(ctx, int64(idx.Len()))
	return nil
}

// Resolve runs the tiered pipeline for one name against the current roster
// snapshot and emits the diagnostic record. The gradebook is not touched.
func (s *Service) Resolve(ctx context.Context, name string) (match.Outcome, error) {
	idx, ok := s.handle.Load()
	if !ok {
		return match.Outcome{}, ErrNoRoster
	}

	ctx, span := observe.StartSpan(ctx, "voicemark.resolve")
	defer span.End()

	start := time.Now()
	outcome, err := s.resolver.Resolve(idx, name)
	s.metrics.ResolveDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return match.Outcome{}, err
	}

	rec := observe.NewRecord(outcome)
	rec.Emit(ctx, observe.Logger(ctx, s.logger))
	s.metrics.Resolutions.Add(ctx, 1, metric.WithAttributes(observe.StageAttr(rec.Stage)))

	return outcome, nil
}

// Process resolves the report's name and, on a confirmed match, applies the
// score deltas to the matched student. Ambiguous and unmatched outcomes
// leave the gradebook untouched — their diagnosis lives in the record
// stream, and the verdict is returned for the caller to act on.
func (s *Service) Process(ctx context.Context, rep Report) (Result, error) {
	outcome, err := s.Resolve(ctx, rep.Name)
	if err != nil {
		return Result{}, err
	}
	res := Result{Outcome: outcome}
	if outcome.Kind != match.KindMatched {
		return res, nil
	}

	student := outcome.Entry.Name
	updated, err := s.book.Adjust(ctx, student, rep.CorrectDelta, rep.WrongDelta)
	if err != nil {
		observe.NewGradeUpdateRecord(student, rep.CorrectDelta, rep.WrongDelta, 0, 0, err.Error()).
			Emit(ctx, observe.Logger(ctx, s.logger))
		s.metrics.GradeUpdates.Add(ctx, 1, metric.WithAttributes(observe.StatusAttr(false)))
		return Result{}, fmt.Errorf("app: update grades for %q: %w", student, err)
	}

	observe.NewGradeUpdateRecord(student, rep.CorrectDelta, rep.WrongDelta, updated.Correct, updated.Wrong, "").
		Emit(ctx, observe.Logger(ctx, s.logger))
	s.metrics.GradeUpdates.Add(ctx, 1, metric.WithAttributes(observe.StatusAttr(true)))

	res.Updated = &updated
	return res, nil
}

// ResolveBatch resolves a list of names concurrently against one roster
// snapshot. Outcomes are returned in input order. The first hard error
// (empty input, no roster) cancels the remaining work.
func (s *Service) ResolveBatch(ctx context.Context, names []string) ([]match.Outcome, error) {
	outcomes := make([]match.Outcome, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, name := range names {
		g.Go(func() error {
			out, err := s.Resolve(ctx, name)
			if err != nil {
				return fmt.Errorf("app: resolve %q: %w", name, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Stats reports gradebook summary statistics.
func (s *Service) Stats(ctx context.Context) (grade.Stats, error) {
	return s.book.Stats(ctx)
}
