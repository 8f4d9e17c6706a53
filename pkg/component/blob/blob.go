// Package blob provides a local filesystem blob store for raw document files.
// Keys are opaque relative paths assigned by the caller; writes are atomic
// via a temp file plus rename.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/docqa/pkg/component/storage"
	blobopts "github.com/kart-io/docqa/pkg/options/blob"
)

// Store is a local disk blob store.
type Store struct {
	baseDir string
}

// New creates a blob store rooted at the configured base directory,
// creating it if necessary.
func New(opts *blobopts.Options) (*Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("blob options is nil")
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob base directory: %w", err)
	}
	return &Store{baseDir: opts.BaseDir}, nil
}

// Name returns the storage type identifier.
// Implements storage.Client interface.
func (s *Store) Name() string {
	return "blob"
}

// Ping verifies the base directory is accessible.
// Implements storage.Client interface.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return fmt.Errorf("blob base directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob base path %s is not a directory", s.baseDir)
	}
	return nil
}

// Close is a no-op for the local store.
// Implements storage.Client interface.
func (s *Store) Close() error {
	return nil
}

// Health returns a HealthChecker function.
// Implements storage.Client interface.
func (s *Store) Health() storage.HealthChecker {
	return func() error {
		return s.Ping(context.Background())
	}
}

// resolve maps a key to an absolute path under baseDir, rejecting
// keys that escape the base directory.
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is empty")
	}
	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

// Put writes the reader's content under the given key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get opens the blob stored under the key. The caller must close the
// returned reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	return f, nil
}

// GetPath returns the on-disk path for a stored blob. Used by readers
// that need random access, such as PDF parsing.
func (s *Store) GetPath(key string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("blob %s not found: %w", key, err)
	}
	return path, nil
}

// Delete removes the blob under the key. Deleting a missing blob is
// not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under the key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
