// Package audit provides AuditSink implementations that do not need the database:
// a structured-log sink and a fan-out over several sinks.
package audit

import (
	"context"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ZapSink writes every audit entry as one structured log line
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink logging under the "audit" name
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{logger: log.Named("audit")}
}

// Record implements shared.AuditSink
func (s *ZapSink) Record(ctx context.Context, entry shared.AuditEntry) {
	logger.WithTraceContext(ctx, s.logger).Info(entry.Event,
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID.String()),
		zap.String("actor_id", entry.ActorID),
		zap.Time("occurred_at", entry.OccurredAt),
		zap.Any("old_values", entry.OldValues),
		zap.Any("new_values", entry.NewValues),
	)
}

// MultiSink hands each entry to every wrapped sink in order
type MultiSink []shared.AuditSink

// NewMultiSink drops nil sinks
func NewMultiSink(sinks ...shared.AuditSink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Record implements shared.AuditSink
func (m MultiSink) Record(ctx context.Context, entry shared.AuditEntry) {
	for _, s := range m {
		s.Record(ctx, entry)
	}
}

var (
	_ shared.AuditSink = (*ZapSink)(nil)
	_ shared.AuditSink = MultiSink(nil)
)
