package event

import (
	"context"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogHandler writes one structured line per domain event
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a handler logging under the "events" name
func NewLogHandler(log *zap.Logger) *LogHandler {
	return &LogHandler{logger: log.Named("events")}
}

// Handle implements shared.EventHandler
func (h *LogHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	logger.WithTraceContext(ctx, h.logger).Info(evt.EventType(),
		zap.String("event_id", evt.EventID().String()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.String("aggregate_id", evt.AggregateID().String()),
		zap.Time("occurred_at", evt.OccurredAt()),
		zap.Any("event", evt),
	)
	return nil
}

// EventTypes implements shared.EventHandler; nil subscribes to every event
func (h *LogHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*LogHandler)(nil)
