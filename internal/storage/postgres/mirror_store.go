// Package postgres mirrors crawl runs and discovered documents into Postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/etd-crawler/internal/store"
)

// Config controls the Postgres connection pool used for the mirror.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id            UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	found         BIGINT NOT NULL DEFAULT 0,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS etd_documents (
	id            BIGINT PRIMARY KEY,
	filename      TEXT NOT NULL,
	title         TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	discovered_at TIMESTAMPTZ NOT NULL,
	run_id        UUID
);`

// MirrorStore implements store.MirrorRepository.
type MirrorStore struct {
	pool execCloser
}

var _ store.MirrorRepository = (*MirrorStore)(nil)

// NewMirrorStore connects to Postgres using cfg.
func NewMirrorStore(ctx context.Context, cfg Config) (*MirrorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &MirrorStore{pool: pool}, nil
}

// NewMirrorStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewMirrorStoreWithPool(pool execCloser) (*MirrorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &MirrorStore{pool: pool}, nil
}

// EnsureSchema creates the mirror tables when they do not exist.
func (s *MirrorStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertRunStart inserts a running crawl_runs row.
func (s *MirrorStore) UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	const query = `
		INSERT INTO crawl_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET started_at = EXCLUDED.started_at, status = EXCLUDED.status;`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt.UTC(), store.RunRunning); err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// CompleteRun records the final status and discovery count of a run.
func (s *MirrorStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	found int64,
	errMsg *string,
) error {
	const query = `
		UPDATE crawl_runs
		SET finished_at = $1, status = $2, found = $3, error_message = $4
		WHERE id = $5;`
	res, err := s.pool.Exec(ctx, query, finishedAt.UTC(), status, found, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: no crawl_runs row", runID)
	}
	return nil
}

// UpsertDocument replaces the etd_documents row for doc.ID.
func (s *MirrorStore) UpsertDocument(ctx context.Context, doc store.Document) error {
	const query = `
		INSERT INTO etd_documents (id, filename, title, source_url, discovered_at, run_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET filename = EXCLUDED.filename,
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			discovered_at = EXCLUDED.discovered_at,
			run_id = EXCLUDED.run_id;`
	var runID *uuid.UUID
	if doc.RunID != uuid.Nil {
		runID = &doc.RunID
	}
	_, err := s.pool.Exec(ctx, query, doc.ID, doc.Filename, doc.Title, doc.SourceURL, doc.DiscoveredAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to upsert document %d: %w", doc.ID, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *MirrorStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
