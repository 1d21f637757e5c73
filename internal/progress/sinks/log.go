// Package sinks contains the progress.Sink implementations shipped with the
// collection engine: structured logging, Prometheus export, and the
// in-memory snapshot served by the diagnostics API.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful in development
// and when auditing a run without the diagnostics server.
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
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("platform", evt.Platform),
		}
		if evt.MatchID != "" {
			fields = append(fields, zap.String("match_id", evt.MatchID))
		}
		if evt.Collected > 0 || evt.Target > 0 {
			fields = append(fields,
				zap.Int64("collected", evt.Collected),
				zap.Int64("target", evt.Target))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
