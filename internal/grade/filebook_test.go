package grade_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mingshi/voicemark/internal/grade"
)

const gradebookYAML = `class:
  name: "三年二班"
  term: "2026 autumn"
students:
  - name: 李明
    correct: 12
    wrong: 3
  - name: 张三
    correct: 0
    wrong: 0
`

func writeGradebook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gradebook.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write gradebook: %v", err)
	}
	return path
}

func TestOpenFileBook(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, gradebookYAML)
	b, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("OpenFileBook: %v", err)
	}

	names, err := b.Names(context.Background())
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0] != "李明" || names[1] != "张三" {
		t.Errorf("Names = %v, want [李明 张三]", names)
	}

	rec, err := b.Record(context.Background(), "李明")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Correct != 12 || rec.Wrong != 3 {
		t.Errorf("Record = %+v, want correct 12 wrong 3", rec)
	}
}

func TestOpenFileBook_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := grade.OpenFileBook(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("OpenFileBook accepted a missing file")
	}
}

func TestOpenFileBook_UnknownField(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, "students:\n  - name: 李明\n    scoore: 3\n")
	_, err := grade.OpenFileBook(path)
	if err == nil {
		t.Fatal("OpenFileBook accepted an unknown field")
	}
}

func TestOpenFileBook_DuplicateStudent(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, "students:\n  - name: 李明\n  - name: 李明\n")
	_, err := grade.OpenFileBook(path)
	if err == nil {
		t.Fatal("OpenFileBook accepted duplicate students")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error = %q, want mention of duplicate", err)
	}
}

func TestFileBook_AdjustPersists(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, gradebookYAML)
	b, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("OpenFileBook: %v", err)
	}
	ctx := context.Background()

	got, err := b.Adjust(ctx, "张三", 2, 1)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got.Correct != 2 || got.Wrong != 1 {
		t.Errorf("Adjust = %+v, want correct 2 wrong 1", got)
	}

	// Reopen from disk: the rewrite must survive the process.
	reopened, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := reopened.Record(ctx, "张三")
	if err != nil {
		t.Fatalf("Record after reopen: %v", err)
	}
	if rec.Correct != 2 || rec.Wrong != 1 {
		t.Errorf("persisted record = %+v, want correct 2 wrong 1", rec)
	}

	// Untouched rows and class metadata survive the rewrite too.
	other, err := reopened.Record(ctx, "李明")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if other.Correct != 12 || other.Wrong != 3 {
		t.Errorf("untouched record = %+v, want correct 12 wrong 3", other)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read gradebook: %v", err)
	}
	if !strings.Contains(string(data), "三年二班") {
		t.Errorf("class metadata lost on rewrite:\n%s", data)
	}
}

func TestFileBook_AdjustUnknown(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, gradebookYAML)
	b, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("OpenFileBook: %v", err)
	}
	if _, err := b.Adjust(context.Background(), "王浩", 1, 0); !errors.Is(err, grade.ErrNotFound) {
		t.Errorf("Adjust(unknown): err = %v, want ErrNotFound", err)
	}
}

func TestFileBook_FailedSaveKeepsState(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, gradebookYAML)
	b, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("OpenFileBook: %v", err)
	}
	ctx := context.Background()

	// Make the directory unwritable so the temp-file creation fails.
	dir := filepath.Dir(path)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	if _, err := b.Adjust(ctx, "张三", 5, 5); err == nil {
		t.Skip("directory still writable (running as privileged user)")
	}

	rec, err := b.Record(ctx, "张三")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Correct != 0 || rec.Wrong != 0 {
		t.Errorf("in-memory state changed after failed save: %+v", rec)
	}
}

func TestFileBook_Stats(t *testing.T) {
	t.Parallel()

	path := writeGradebook(t, gradebookYAML)
	b, err := grade.OpenFileBook(path)
	if err != nil {
		t.Fatalf("OpenFileBook: %v", err)
	}
	s, err := b.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Students != 2 || s.TotalCorrect != 12 || s.TotalWrong != 3 {
		t.Errorf("Stats = %+v, want 2 students, 12 correct, 3 wrong", s)
	}
}
