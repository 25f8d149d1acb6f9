package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/metrics"
)

// Store is the in-memory catalog. Reads and writes of the mapping are guarded
// by an RWMutex; flushes are serialized by a separate mutex so a slow backend
// never blocks readers.
type Store struct {
	backend crawler.CatalogBackend
	logger  *zap.Logger

	mu      sync.RWMutex
	records map[int64]crawler.Record

	flushMu sync.Mutex
}

var _ crawler.Catalog = (*Store)(nil)

// New returns an empty Store bound to backend. Call Load to read persisted state.
func New(backend crawler.CatalogBackend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		records: make(map[int64]crawler.Record),
	}
}

// Load replaces the in-memory mapping with the backend contents. Missing or
// corrupt data yields an empty mapping so a crawl can always start cold;
// individual unusable entries are logged and left out.
func (s *Store) Load(ctx context.Context) map[int64]crawler.Record {
	records := make(map[int64]crawler.Record)
	data, err := s.backend.Read(ctx)
	switch {
	case errors.Is(err, crawler.ErrBackendNotFound):
		s.logger.Info("catalog not found, starting empty")
	case err != nil:
		s.logger.Warn("catalog unreadable, starting empty", zap.Error(err))
	case len(strings.TrimSpace(string(data))) == 0:
		s.logger.Warn("catalog empty, starting empty")
	default:
		decoded, problems, decErr := Decode(data)
		if decErr != nil {
			s.logger.Warn("catalog corrupt, starting empty", zap.Error(decErr))
			break
		}
		for _, p := range problems {
			s.logger.Warn("catalog entry not fully readable", zap.String("key", p.Key), zap.Error(p.Err))
		}
		records = decoded
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	s.logger.Info("catalog loaded", zap.Int("records", len(records)))
	return s.snapshot()
}

// Contains reports whether id has a record.
func (s *Store) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Put upserts record by ID, replacing any previous record wholesale.
func (s *Store) Put(record crawler.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
}

// Get returns the record for id.
func (s *Store) Get(id int64) (crawler.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Flush persists the full mapping through the backend.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	data, err := Encode(s.records)
	count := len(s.records)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	err = s.backend.Write(ctx, data)
	metrics.ObserveFlush(err, count)
	if err != nil {
		return fmt.Errorf("flush catalog: %w", err)
	}
	s.logger.Debug("catalog flushed", zap.Int("records", count), zap.Int("bytes", len(data)))
	return nil
}

// Query returns records matching pred ordered by ascending ID. A nil pred
// matches everything.
func (s *Store) Query(pred func(crawler.Record) bool) []crawler.Record {
	s.mu.RLock()
	out := make([]crawler.Record, 0, len(s.records))
	for _, rec := range s.records {
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b crawler.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Search matches titles containing text, ignoring case. Empty text returns
// every record.
func (s *Store) Search(text string) []crawler.Record {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return s.Query(nil)
	}
	return s.Query(func(rec crawler.Record) bool {
		return strings.Contains(strings.ToLower(rec.Title), needle)
	})
}

// Recent returns up to limit records with the highest IDs, newest first.
func (s *Store) Recent(limit int) []crawler.Record {
	all := s.Query(nil)
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Store) snapshot() map[int64]crawler.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]crawler.Record, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}
