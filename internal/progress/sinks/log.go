package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/progress"
)

// LogSink emits structured logs for run milestones. Fetch completions are
// logged at debug to keep long scans readable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageDocFound:
			fields = append(fields,
				zap.Int64("doc_id", evt.DocID),
				zap.String("filename", evt.Filename),
				zap.String("title", evt.Title),
			)
			s.logger.Info("document found", fields...)
		case progress.StageFetchDone:
			fields = append(fields,
				zap.Int64("doc_id", evt.DocID),
				zap.String("outcome", string(evt.Outcome)),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Debug("fetch done", fields...)
		case progress.StageRunError:
			fields = append(fields, zap.Int64("found", evt.Found), zap.String("note", evt.Note))
			s.logger.Error("crawl run failed", fields...)
		default:
			fields = append(fields, zap.Int64("found", evt.Found), zap.Duration("dur", evt.Dur))
			s.logger.Info("crawl run event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
