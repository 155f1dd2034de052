package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// LogSink writes each entry as a structured log line. Used when no
// database is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Append(_ context.Context, e pharmacy.AuditEntry) error {
	s.logger.Info(string(e.Action),
		zap.String("audit_id", e.ID),
		zap.Time("timestamp", e.Timestamp),
		zap.String("actor", e.Actor),
		zap.String("entity", e.Entity),
		zap.Int("entity_id", e.EntityID),
		zap.String("detail", e.Detail),
	)
	return nil
}

// Multi fans an entry out to several sinks. Every sink is tried; the first
// error is returned.
type Multi []Sink

func (m Multi) Append(ctx context.Context, e pharmacy.AuditEntry) error {
	var first error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
