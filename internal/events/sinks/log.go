package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/events"
)

// LogSink writes boundary, state and fallback events at debug level. Per-tick
// frame events are skipped; at 20 per second they would only be noise.
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

// Consume logs each non-frame event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		if evt.Kind == events.KindFrame {
			continue
		}
		fields := []zap.Field{
			zap.String("kind", string(evt.Kind)),
			zap.Time("instant", evt.TS),
			zap.String("city_id", evt.CityID),
			zap.String("language", string(evt.Language)),
			zap.Uint64("revision", evt.Revision),
		}
		if evt.Frame != nil {
			fields = append(fields, zap.String("time", evt.Frame.Time), zap.String("offset", evt.Frame.Offset))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("clock event", fields...)
	}
	return nil
}

// Close implements events.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
