package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Ensure LocalObjectStorage implements ObjectStorage
var _ ObjectStorage = (*LocalObjectStorage)(nil)

// LocalObjectStorage stores objects as files under a base directory. It is
// meant for development and tests; production deployments use S3.
type LocalObjectStorage struct {
	baseDir string
}

// NewLocalObjectStorage creates a filesystem-backed store rooted at baseDir
func NewLocalObjectStorage(baseDir string) (*LocalObjectStorage, error) {
	if baseDir == "" {
		return nil, errors.New("storage base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalObjectStorage{baseDir: baseDir}, nil
}

// Upload writes the body to a file named by storageKey
func (s *LocalObjectStorage) Upload(ctx context.Context, storageKey string, body io.Reader, size int64, contentType string) error {
	path, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write object: %w", err)
	}
	return f.Close()
}

// Delete removes the object file. Missing files are not an error.
func (s *LocalObjectStorage) Delete(ctx context.Context, storageKey string) error {
	path, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether the object file is present
func (s *LocalObjectStorage) Exists(ctx context.Context, storageKey string) (bool, error) {
	path, err := s.resolve(storageKey)
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

// resolve maps a storage key to a filesystem path, rejecting keys that would
// escape the base directory
func (s *LocalObjectStorage) resolve(storageKey string) (string, error) {
	if storageKey == "" {
		return "", errors.New("storage key is required")
	}
	cleaned := filepath.Clean(filepath.FromSlash(storageKey))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key %q", storageKey)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
