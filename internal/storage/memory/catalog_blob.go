// Package memory keeps the serialized catalog in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

// CatalogBlob stores the latest catalog bytes and counts writes.
type CatalogBlob struct {
	mu      sync.RWMutex
	data    []byte
	present bool
	writes  int
	failN   int
	failErr error
}

// NewCatalogBlob creates an empty in-memory backend.
func NewCatalogBlob() *CatalogBlob {
	return &CatalogBlob{}
}

// NewCatalogBlobWith seeds the backend with existing content.
func NewCatalogBlobWith(data []byte) *CatalogBlob {
	return &CatalogBlob{data: append([]byte(nil), data...), present: true}
}

// FailNext makes the next n writes return err without storing anything.
func (b *CatalogBlob) FailNext(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failN = n
	b.failErr = err
}

// Read returns a copy of the stored bytes.
func (b *CatalogBlob) Read(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.present {
		return nil, crawler.ErrBackendNotFound
	}
	return append([]byte(nil), b.data...), nil
}

// Write replaces the stored bytes.
func (b *CatalogBlob) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failN > 0 {
		b.failN--
		return b.failErr
	}
	b.data = append([]byte(nil), data...)
	b.present = true
	b.writes++
	return nil
}

// Writes reports how many successful writes have happened.
func (b *CatalogBlob) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}
