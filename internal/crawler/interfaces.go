package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrBackendNotFound is returned by a CatalogBackend when nothing has been persisted yet.
var ErrBackendNotFound = errors.New("catalog data not found")

// Catalog is the document store the engine reads and writes.
type Catalog interface {
	Contains(id int64) bool
	Put(record Record)
	Get(id int64) (Record, bool)
	Flush(ctx context.Context) error
}

// CatalogBackend persists the serialized catalog. Write must be atomic with
// respect to concurrent readers.
type CatalogBackend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Classifier performs one retrieval for a document identifier and decides
// whether it names a downloadable file. A non-nil error wraps ErrFetch.
type Classifier interface {
	Classify(ctx context.Context, id int64) (Classification, error)
	Locator(id int64) string
}

// TitleExtractor derives a human readable title from raw document bytes.
type TitleExtractor interface {
	Extract(data []byte) string
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
