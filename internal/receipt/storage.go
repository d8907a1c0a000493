package receipt

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for receipt image storage
type Storage interface {
	// Save saves a file and returns its storage key
	Save(ctx context.Context, filename string, data []byte) (string, error)

	// Get retrieves a file by key
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a file
	Delete(ctx context.Context, key string) error

	// URL returns the public URL of a stored file
	URL(key string) string
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath      string
	publicBaseURL string
}

// NewLocalStorage creates a new LocalStorage instance. Files are served by the API
// under publicBaseURL (for example "/files" or "https://fleet.example.com/files").
func NewLocalStorage(basePath string, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(_ context.Context, filename string, data []byte) (string, error) {
	path, err := l.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// URL returns the public URL of a stored file
func (l *LocalStorage) URL(key string) string {
	return l.publicBaseURL + "/" + url.PathEscape(key)
}

// path resolves a key inside the storage directory, rejecting keys that would escape it
func (l *LocalStorage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(l.basePath, key), nil
}
