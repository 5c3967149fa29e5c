package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entity type names used in audit records
const (
	AuditEntityAllocation  = "allocation"
	AuditEntityReservation = "reservation"
	AuditEntityVoucher     = "voucher"
	AuditEntityCase        = "case_entitlement"
	AuditEntityTransfer    = "voucher_transfer"
)

// AuditEntry is a single mutation record handed to the audit sink.
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	Event      string
	OldValues  map[string]any
	NewValues  map[string]any
	ActorID    string
	OccurredAt time.Time
}

// AuditSink receives one entry per mutating operation.
// Implementations must not fail the caller: errors are theirs to log.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// ActorResolver supplies the opaque id of whoever is performing the current operation.
type ActorResolver interface {
	ActorID(ctx context.Context) string
}

// NopAuditSink discards every entry
type NopAuditSink struct{}

// Record implements AuditSink
func (NopAuditSink) Record(context.Context, AuditEntry) {}

// SystemActor is used when no actor is attached to the context (sweeps, scans)
const SystemActor = "system"

// StaticActorResolver always returns the same actor id
type StaticActorResolver string

// ActorID implements ActorResolver
func (s StaticActorResolver) ActorID(context.Context) string {
	return string(s)
}
