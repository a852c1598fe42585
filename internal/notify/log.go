package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink records every event in the process log. Always enabled: alerts must
// be traceable even when every external transport is down.
type LogSink struct {
	Logger *zap.Logger
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Send(_ context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("severity", string(ev.Severity)),
		zap.String("subject", ev.Subject),
		zap.String("body", ev.Body))
	return nil
}
