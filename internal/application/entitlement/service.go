package entitlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dependencies are the collaborators shared by every entitlement service.
// Repos and TxScope are required; the rest fall back to harmless defaults.
type Dependencies struct {
	Repos   TransactionalRepositories
	TxScope TransactionScope
	Clock   shared.Clock
	Audit   shared.AuditSink
	Actors  shared.ActorResolver
	Events  shared.EventPublisher
	Metrics *telemetry.EntitlementMetrics
	Logger  *zap.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = shared.NewSystemClock()
	}
	if d.Audit == nil {
		d.Audit = shared.NopAuditSink{}
	}
	if d.Actors == nil {
		d.Actors = shared.StaticActorResolver(shared.SystemActor)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// base carries the helpers every service uses
type base struct {
	deps   Dependencies
	logger *zap.Logger
}

func newBase(deps Dependencies, name string) base {
	deps = deps.withDefaults()
	return base{deps: deps, logger: deps.Logger.Named(name)}
}

func (b *base) record(ctx context.Context, entityType string, entityID uuid.UUID, event string, oldValues, newValues map[string]any) {
	b.deps.Audit.Record(ctx, shared.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Event:      event,
		OldValues:  oldValues,
		NewValues:  newValues,
		ActorID:    b.deps.Actors.ActorID(ctx),
		OccurredAt: b.deps.Clock.Now(),
	})
}

// publish hands committed domain events to the event bus. Failures are logged only.
func (b *base) publish(ctx context.Context, aggregates ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if len(events) == 0 || b.deps.Events == nil {
		return
	}
	if err := b.deps.Events.Publish(ctx, events...); err != nil {
		b.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	span.End()
}
