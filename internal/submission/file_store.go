package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every submission in a single JSON array on disk.
//
// Append rewrites the whole document, so the mutex is the only thing standing
// between two requests and a lost update. One FileStore per file per process.
type FileStore struct {
	path string
	mu   sync.Mutex
	stamper
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, stamper: defaultStamper()}
}

func (s *FileStore) Path() string { return s.path }

// List returns an empty slice when the file does not exist yet. Any other
// read failure is an error, never an empty inbox.
func (s *FileStore) List(ctx context.Context) ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Append(ctx context.Context, d Draft) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	existing, err := s.read()
	if err != nil {
		// never overwrite a document we could not parse
		if errors.Is(err, ErrStorageCorrupt) {
			return Submission{}, err
		}
		return Submission{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	sub, err := s.stamp(d)
	if err != nil {
		return Submission{}, err
	}

	data, err := json.MarshalIndent(append(existing, sub), "", "  ")
	if err != nil {
		return Submission{}, fmt.Errorf("%w: unable to encode submissions - %w", ErrStorageWrite, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return sub, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]Submission, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Submission{}, nil
		}
		return nil, fmt.Errorf("unable to read %s - %w", s.path, err)
	}

	var subs []Submission
	if err := json.Unmarshal(bytes.TrimSpace(data), &subs); err != nil {
		return nil, fmt.Errorf("%w: %s - %w", ErrStorageCorrupt, s.path, err)
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}

// writeFileAtomic writes to a sibling temp file, syncs it and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create %s - %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("unable to create temp file - %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("unable to write %s - %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("unable to sync %s - %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("unable to close %s - %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("unable to chmod %s - %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("unable to replace %s - %w", path, err)
	}
	return nil
}
