// Package local persists the serialized catalog as a single file on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

// Config captures the parameters for the file backend.
type Config struct {
	// Path is the catalog file location, e.g. crawled_pdfs.json.
	Path string `mapstructure:"path" yaml:"path"`
}

// CatalogFile reads and atomically replaces the catalog file.
type CatalogFile struct {
	path string
}

// New creates a file backend, creating the parent directory when missing.
func New(cfg Config) (*CatalogFile, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat catalog directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("catalog directory path is not a directory")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is a directory", path)
	}
	return &CatalogFile{path: path}, nil
}

// Path returns the catalog file location.
func (f *CatalogFile) Path() string {
	return f.path
}

// Read returns the file contents or crawler.ErrBackendNotFound when the file
// does not exist yet.
func (f *CatalogFile) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, crawler.ErrBackendNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return data, nil
}

// Write replaces the catalog by writing a sibling temp file, syncing it and
// renaming it over the target. Readers never observe a partial file.
func (f *CatalogFile) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}
