// Package gcs persists the serialized catalog as a Google Cloud Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

// Config captures the bucket and object holding the catalog.
type Config struct {
	Bucket string
	Object string
}

// CatalogObject reads and replaces the catalog object. GCS object writes are
// atomic: readers see the previous generation until Close succeeds.
type CatalogObject struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed catalog backend.
func New(client *storage.Client, cfg Config) (*CatalogObject, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &CatalogObject{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

// URI returns the gs:// location of the catalog.
func (c *CatalogObject) URI() string {
	return fmt.Sprintf("gs://%s/%s", c.bucket, c.object)
}

// Read downloads the catalog object.
func (c *CatalogObject) Read(ctx context.Context) ([]byte, error) {
	reader, err := c.client.Bucket(c.bucket).Object(c.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, crawler.ErrBackendNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Write uploads data as the new catalog generation.
func (c *CatalogObject) Write(ctx context.Context, data []byte) error {
	writer := c.client.Bucket(c.bucket).Object(c.object).NewWriter(ctx)
	writer.ContentType = "application/json; charset=utf-8"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
