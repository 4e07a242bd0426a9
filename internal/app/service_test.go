package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mingshi/voicemark/internal/app"
	"github.com/mingshi/voicemark/internal/grade"
	"github.com/mingshi/voicemark/internal/match"
)

// fakeBook is a mutable in-memory gradebook for service tests. Unlike
// grade.MemBook it allows swapping the name list between reloads.
type fakeBook struct {
	inner    *grade.MemBook
	namesErr error
}

func newFakeBook(t *testing.T, records ...grade.StudentRecord) *fakeBook {
	t.Helper()
	inner, err := grade.NewMemBook(records)
	if err != nil {
		t.Fatalf("NewMemBook: %v", err)
	}
	return &fakeBook{inner: inner}
}

func (f *fakeBook) replace(t *testing.T, records ...grade.StudentRecord) {
	t.Helper()
	inner, err := grade.NewMemBook(records)
	if err != nil {
		t.Fatalf("NewMemBook: %v", err)
	}
	f.inner = inner
}

func (f *fakeBook) Names(ctx context.Context) ([]string, error) {
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	return f.inner.Names(ctx)
}

func (f *fakeBook) Record(ctx context.Context, name string) (grade.StudentRecord, error) {
	return f.inner.Record(ctx, name)
}

func (f *fakeBook) Adjust(ctx context.Context, name string, correctDelta, wrongDelta int) (grade.StudentRecord, error) {
	return f.inner.Adjust(ctx, name, correctDelta, wrongDelta)
}

func (f *fakeBook) Stats(ctx context.Context) (grade.Stats, error) {
	return f.inner.Stats(ctx)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, book grade.Book, opts ...app.Option) *app.Service {
	t.Helper()
	opts = append(opts, app.WithLogger(quietLogger()))
	s, err := app.New(context.Background(), book, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_LoadsInitialRoster(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明"},
		grade.StudentRecord{Name: "张三"},
		grade.StudentRecord{Name: "王浩"},
	)
	s := newTestService(t, book)

	idx, ok := s.Roster().Load()
	if !ok {
		t.Fatal("no roster published after New")
	}
	if idx.Len() != 3 {
		t.Errorf("roster size = %d, want 3", idx.Len())
	}
}

func TestNew_FailsOnUnloadableRoster(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "李明"})
	book.namesErr = errors.New("connection refused")

	_, err := app.New(context.Background(), book, app.WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("New succeeded with an unreachable gradebook")
	}
}

func TestResolve_Matched(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明"},
		grade.StudentRecord{Name: "张三"},
	)
	s := newTestService(t, book)

	out, err := s.Resolve(context.Background(), "李明")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != match.KindMatched || out.Tier != match.TierExact {
		t.Errorf("outcome = %s/%s, want matched/exact", out.Kind, out.Tier)
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "李明"})
	s := newTestService(t, book)

	if _, err := s.Resolve(context.Background(), "   "); !errors.Is(err, match.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestProcess_MatchUpdatesGradebook(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明", Correct: 10, Wrong: 2},
		grade.StudentRecord{Name: "张三"},
	)
	s := newTestService(t, book)

	res, err := s.Process(context.Background(), app.Report{Name: "李明", CorrectDelta: 2, WrongDelta: 1})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome.Kind != match.KindMatched {
		t.Fatalf("Kind = %s, want matched", res.Outcome.Kind)
	}
	if res.Updated == nil {
		t.Fatal("Updated is nil on a matched report")
	}
	if res.Updated.Correct != 12 || res.Updated.Wrong != 3 {
		t.Errorf("Updated = %+v, want correct 12 wrong 3", res.Updated)
	}

	rec, err := book.Record(context.Background(), "李明")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Correct != 12 || rec.Wrong != 3 {
		t.Errorf("gradebook = %+v, want correct 12 wrong 3", rec)
	}
}

func TestProcess_AmbiguousLeavesGradebookUntouched(t *testing.T) {
	t.Parallel()

	// 李明 and 黎明 share the phonetic key "liming".
	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明", Correct: 4},
		grade.StudentRecord{Name: "黎明", Correct: 7},
	)
	s := newTestService(t, book)

	res, err := s.Process(context.Background(), app.Report{Name: "liming", CorrectDelta: 5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome.Kind != match.KindAmbiguous {
		t.Fatalf("Kind = %s, want ambiguous", res.Outcome.Kind)
	}
	if res.Updated != nil {
		t.Errorf("Updated = %+v on ambiguous outcome, want nil", res.Updated)
	}

	for _, name := range []string{"李明", "黎明"} {
		rec, err := book.Record(context.Background(), name)
		if err != nil {
			t.Fatalf("Record(%s): %v", name, err)
		}
		if rec.Wrong != 0 || (rec.Correct != 4 && rec.Correct != 7) {
			t.Errorf("gradebook for %s changed: %+v", name, rec)
		}
	}
}

func TestProcess_UnmatchedLeavesGradebookUntouched(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "张三", Correct: 1})
	s := newTestService(t, book)

	res, err := s.Process(context.Background(), app.Report{Name: "不存在的人", CorrectDelta: 3})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome.Kind != match.KindUnmatched {
		t.Fatalf("Kind = %s, want unmatched", res.Outcome.Kind)
	}
	if res.Updated != nil {
		t.Errorf("Updated = %+v on unmatched outcome, want nil", res.Updated)
	}

	rec, err := book.Record(context.Background(), "张三")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Correct != 1 {
		t.Errorf("gradebook changed: %+v", rec)
	}
}

func TestReload_PicksUpNewStudents(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "李明"})
	s := newTestService(t, book)

	// 王浩 is not in the first snapshot.
	out, err := s.Resolve(context.Background(), "王浩")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != match.KindUnmatched {
		t.Fatalf("Kind before reload = %s, want unmatched", out.Kind)
	}

	book.replace(t,
		grade.StudentRecord{Name: "李明"},
		grade.StudentRecord{Name: "王浩"},
	)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	out, err = s.Resolve(context.Background(), "王浩")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != match.KindMatched {
		t.Errorf("Kind after reload = %s, want matched", out.Kind)
	}
}

func TestReload_FailedBuildKeepsOldSnapshot(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "李明"})
	s := newTestService(t, book)

	book.namesErr = errors.New("connection refused")
	if err := s.Reload(context.Background()); err == nil {
		t.Fatal("Reload succeeded with an unreachable gradebook")
	}

	idx, ok := s.Roster().Load()
	if !ok || idx.Len() != 1 {
		t.Errorf("old snapshot lost after failed reload: ok=%v", ok)
	}
}

func TestResolveBatch_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明"},
		grade.StudentRecord{Name: "张三"},
		grade.StudentRecord{Name: "王浩"},
	)
	s := newTestService(t, book)

	names := []string{"王浩", "不存在的人", "李明", "张三"}
	outcomes, err := s.ResolveBatch(context.Background(), names)
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if len(outcomes) != len(names) {
		t.Fatalf("len(outcomes) = %d, want %d", len(outcomes), len(names))
	}

	wantKinds := []match.Kind{match.KindMatched, match.KindUnmatched, match.KindMatched, match.KindMatched}
	for i, out := range outcomes {
		if out.Kind != wantKinds[i] {
			t.Errorf("outcomes[%d].Kind = %s, want %s", i, out.Kind, wantKinds[i])
		}
	}
	if outcomes[0].Entry.Name != "王浩" || outcomes[2].Entry.Name != "李明" {
		t.Errorf("outcomes out of input order: %v", outcomes)
	}
}

func TestResolveBatch_EmptyNameFailsBatch(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t, grade.StudentRecord{Name: "李明"})
	s := newTestService(t, book)

	_, err := s.ResolveBatch(context.Background(), []string{"李明", ""})
	if !errors.Is(err, match.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestRecordsReachInjectedLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明"},
		grade.StudentRecord{Name: "张三"},
	)
	s, err := app.New(context.Background(), book, app.WithLogger(logger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Process(context.Background(), app.Report{Name: "李明", CorrectDelta: 1}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := s.Resolve(context.Background(), "不存在的人"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	logged := buf.String()
	for _, stage := range []string{"ROSTER_RELOAD", "NAME_MATCH_EXACT", "GRADE_UPDATE_SUCCESS", "NAME_MATCH_FAIL"} {
		if !strings.Contains(logged, stage) {
			t.Errorf("injected logger missing %s record; logged:\n%s", stage, logged)
		}
	}
}

func TestStats_Passthrough(t *testing.T) {
	t.Parallel()

	book := newFakeBook(t,
		grade.StudentRecord{Name: "李明", Correct: 6, Wrong: 2},
		grade.StudentRecord{Name: "张三", Correct: 2, Wrong: 0},
	)
	s := newTestService(t, book)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Students != 2 || stats.TotalCorrect != 8 || stats.TotalWrong != 2 {
		t.Errorf("Stats = %+v, want 2 students, 8 correct, 2 wrong", stats)
	}
}
