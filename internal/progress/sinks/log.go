package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/progress"
)

// LogSink writes progress events as structured logs. URL completions go to
// debug, run milestones to info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("profile", evt.Profile),
		}
		if evt.Stage == progress.StageURLDone {
			fields = append(fields,
				zap.String("url", crawler.StripQuery(evt.URL)),
				zap.String("result", evt.Result()),
				zap.Int("records", evt.Records),
				zap.Int("discovered", evt.Discovered),
				zap.Duration("dur", evt.Dur),
			)
			if evt.Note != "" {
				fields = append(fields, zap.String("note", evt.Note))
			}
			s.logger.Debug("url done", fields...)
			continue
		}
		fields = append(fields,
			zap.Int("completed", evt.Completed),
			zap.Int("in_flight", evt.InFlight),
			zap.Int("pending", evt.Pending),
			zap.Int("records", evt.Records),
			zap.Duration("elapsed", evt.Dur),
		)
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("crawl progress", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
