package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore keeps pickles in <dir>/<kind>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ PickleStore = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(kind Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

func (s *FileStore) load(kind Kind) (map[string]Record, error) {
	m := make(map[string]Record)
	if err := readJSON(s.path(kind), &m); err != nil {
		return nil, fmt.Errorf("read %s pickles: %w", kind, err)
	}
	return m, nil
}

func (s *FileStore) SavePickle(ctx context.Context, kind Kind, name, pickle string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(kind)
	if err != nil {
		return err
	}
	m[name] = Record{Kind: kind, Name: name, Pickle: pickle, UpdatedAt: s.now().UTC()}
	return writeJSON(s.path(kind), m, 0o600)
}

func (s *FileStore) LoadPickle(ctx context.Context, kind Kind, name string) (Record, error) {
	if err := validate(kind, name); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(kind)
	if err != nil {
		return Record{}, err
	}
	rec, ok := m[name]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) DeletePickle(ctx context.Context, kind Kind, name string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(kind)
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return ErrNotFound
	}
	delete(m, name)
	return writeJSON(s.path(kind), m, 0o600)
}

func (s *FileStore) ListPickles(ctx context.Context, kind Kind) ([]string, error) {
	if err := validate(kind, ""); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Close() error { return nil }
