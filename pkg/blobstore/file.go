package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore keeps objects as files. Keys are paths, relative to Root when
// Root is set.
type FileStore struct {
	Root string
}

// NewFileStore creates a FileStore rooted at root ("" means paths are used as given).
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (s *FileStore) path(key string) string {
	if s.Root == "" {
		return key
	}
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

// Put writes data to the file for key, creating parent directories.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Get reads the file for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// StdioStore reads from stdin and writes to stdout, ignoring keys.
type StdioStore struct {
	In  io.Reader
	Out io.Writer
}

// NewStdioStore creates a StdioStore bound to os.Stdin and os.Stdout.
func NewStdioStore() *StdioStore {
	return &StdioStore{In: os.Stdin, Out: os.Stdout}
}

func (s *StdioStore) Put(_ context.Context, _ string, data []byte) error {
	if _, err := s.Out.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (s *StdioStore) Get(_ context.Context, _ string) ([]byte, error) {
	data, err := io.ReadAll(s.In)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}
