package sinks

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/progress"
	"github.com/JakeFAU/etd-crawler/internal/store"
)

// StoreSink mirrors run lifecycle and discovered documents into a
// store.MirrorRepository. Repeated discoveries of one ID inside a batch are
// collapsed so only the latest record is written.
type StoreSink struct {
	repo   store.MirrorRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.MirrorRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the batch to the repository, returning the first error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	docs := make(map[int64]store.Document)
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			// Documents from an earlier run in the same batch go first.
			if err := s.writeDocuments(ctx, docs); err != nil {
				return err
			}
			clear(docs)
			if err := s.repo.UpsertRunStart(ctx, evt.RunUUID(), evt.TS); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageDocFound:
			docs[evt.DocID] = store.Document{
				ID:           evt.DocID,
				Filename:     evt.Filename,
				Title:        evt.Title,
				SourceURL:    evt.URL,
				DiscoveredAt: evt.TS,
				RunID:        evt.RunUUID(),
			}
		case progress.StageRunDone, progress.StageRunError:
			if err := s.writeDocuments(ctx, docs); err != nil {
				return err
			}
			clear(docs)
			if err := s.completeRun(ctx, evt); err != nil {
				return err
			}
		}
	}
	return s.writeDocuments(ctx, docs)
}

func (s *StoreSink) completeRun(ctx context.Context, evt progress.Event) error {
	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			note = &evt.Note
		}
	}
	if err := s.repo.CompleteRun(ctx, evt.RunUUID(), evt.TS, status, evt.Found, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *StoreSink) writeDocuments(ctx context.Context, docs map[int64]store.Document) error {
	ids := make([]int64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.repo.UpsertDocument(ctx, docs[id]); err != nil {
			return fmt.Errorf("upsert document %d: %w", id, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
