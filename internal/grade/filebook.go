package grade

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// GradebookFile is the top-level structure of a voicemark gradebook YAML
// file.
//
// Example:
//
//	class:
//	  name: "三年二班"
//	students:
//	  - name: 李明
//	    correct: 12
//	    wrong: 3
type GradebookFile struct {
	Class    ClassMeta       `yaml:"class"`
	Students []StudentRecord `yaml:"students"`
}

// ClassMeta holds top-level metadata for a gradebook file.
type ClassMeta struct {
	// Name is the class's display name.
	Name string `yaml:"name"`

	// Term is a free-text school term label (e.g., "2026 autumn").
	Term string `yaml:"term"`
}

// LoadGradebookFromReader parses gradebook YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadGradebookFromReader(r io.Reader) (*GradebookFile, error) {
	var gf GradebookFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&gf); err != nil {
		return nil, fmt.Errorf("grade: decode gradebook yaml: %w", err)
	}
	return &gf, nil
}

// Compile-time assertion that FileBook satisfies the Book interface.
var _ Book = (*FileBook)(nil)

// FileBook is a [Book] backed by a YAML file on disk. The file is read once
// at open; every successful Adjust rewrites it atomically (write to a
// temporary file in the same directory, then rename), so a crash mid-update
// never leaves a truncated gradebook behind.
type FileBook struct {
	path string

	mu   sync.Mutex
	file GradebookFile
	pos  map[string]int // name → Students index
}

// OpenFileBook reads and parses the gradebook file at path.
// Duplicate student names are rejected.
func OpenFileBook(path string) (*FileBook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("grade: open gradebook %q: %w", path, err)
	}
	defer f.Close()

	gf, err := LoadGradebookFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("grade: parse gradebook %q: %w", path, err)
	}

	pos := make(map[string]int, len(gf.Students))
	for i, s := range gf.Students {
		if prev, exists := pos[s.Name]; exists {
			return nil, fmt.Errorf("grade: gradebook %q: students[%d] duplicates students[%d] (%q)", path, i, prev, s.Name)
		}
		pos[s.Name] = i
	}

	return &FileBook{path: path, file: *gf, pos: pos}, nil
}

// Names implements [Book.Names].
func (b *FileBook) Names(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.file.Students))
	for i, s := range b.file.Students {
		out[i] = s.Name
	}
	return out, nil
}

// Record implements [Book.Record].
func (b *FileBook) Record(ctx context.Context, name string) (StudentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.pos[name]
	if !ok {
		return StudentRecord{}, ErrNotFound
	}
	return b.file.Students[i], nil
}

// Adjust implements [Book.Adjust]. The in-memory state is only committed
// once the file rewrite succeeds, so a failed save leaves the previous
// totals in place.
func (b *FileBook) Adjust(ctx context.Context, name string, correctDelta, wrongDelta int) (StudentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.pos[name]
	if !ok {
		return StudentRecord{}, ErrNotFound
	}

	updated := b.file.Students[i]
	updated.Correct += correctDelta
	updated.Wrong += wrongDelta

	next := b.file
	next.Students = make([]StudentRecord, len(b.file.Students))
	copy(next.Students, b.file.Students)
	next.Students[i] = updated

	if err := b.save(next); err != nil {
		return StudentRecord{}, err
	}
	b.file = next
	return updated, nil
}

// Stats implements [Book.Stats].
func (b *FileBook) Stats(ctx context.Context) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return statsOf(b.file.Students), nil
}

// save writes gf to the gradebook path atomically.
func (b *FileBook) save(gf GradebookFile) error {
	data, err := yaml.Marshal(gf)
	if err != nil {
		return fmt.Errorf("grade: marshal gradebook: %w", err)
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("grade: create temp gradebook: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("grade: write temp gradebook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("grade: close temp gradebook: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("grade: replace gradebook %q: %w", b.path, err)
	}
	return nil
}
