package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/progress"
)

// DocumentMessage is the payload announced for every discovered document.
type DocumentMessage struct {
	RunID        string    `json:"run_id,omitempty"`
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// PublisherSink announces DOC_FOUND events on a topic. Other stages are ignored.
type PublisherSink struct {
	publisher crawler.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink builds a sink that publishes to topic via publisher.
func NewPublisherSink(publisher crawler.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}
}

// Consume publishes one message per discovered document.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	for _, evt := range batch {
		if evt.Stage != progress.StageDocFound {
			continue
		}
		var runID string
		if id := evt.RunUUID(); id != uuid.Nil {
			runID = id.String()
		}
		msg := DocumentMessage{
			RunID:        runID,
			ID:           evt.DocID,
			Filename:     evt.Filename,
			Title:        evt.Title,
			SourceURL:    evt.URL,
			DiscoveredAt: evt.TS,
		}
		msgID, err := s.publisher.Publish(ctx, s.topic, msg)
		if err != nil {
			return fmt.Errorf("publish document %d: %w", evt.DocID, err)
		}
		s.logger.Debug("document announced", zap.Int64("doc_id", evt.DocID), zap.String("message_id", msgID))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
