package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus mirrors the crawl_runs status column.
type RunStatus string

// Run statuses persisted in crawl_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Document is the row mirrored into the documents table.
type Document struct {
	ID           int64
	Filename     string
	Title        string
	SourceURL    string
	DiscoveredAt time.Time
	RunID        uuid.UUID
}

// MirrorRepository keeps a queryable copy of crawl history outside the JSON
// catalog file.
type MirrorRepository interface {
	// UpsertRunStart inserts (or idempotently updates) a running crawl_runs row.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	// CompleteRun marks the run finished with its final status and found count.
	CompleteRun(
		ctx context.Context,
		runID uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		found int64,
		errMsg *string,
	) error
	// UpsertDocument replaces the documents row for doc.ID.
	UpsertDocument(ctx context.Context, doc Document) error
}
