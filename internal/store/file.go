package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type fileContents struct {
	Items []*Record `json:"items"`
}

// FileStore keeps all records in a single JSON document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(_ context.Context, r *Record) error {
	if r == nil {
		return errors.New("record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range contents.Items {
		if existing.ID == r.ID {
			contents.Items[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		contents.Items = append(contents.Items, r)
	}

	return s.write(contents)
}

func (s *FileStore) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, r := range contents.Items {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *FileStore) List(_ context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return nil, err
	}

	items := contents.Items
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (*fileContents, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileContents{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return &fileContents{}, nil
	}

	var contents fileContents
	if err := json.NewDecoder(file).Decode(&contents); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &contents, nil
}

// write replaces the store file atomically.
func (s *FileStore) write(contents *fileContents) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".analyses_*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(contents); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
