package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// AggregateTypeAllocation is the aggregate type name
const AggregateTypeAllocation = "Allocation"

// Event type constants
const (
	EventTypeAllocationCreated       = "AllocationCreated"
	EventTypeAllocationConsumed      = "AllocationConsumed"
	EventTypeAllocationStatusChanged = "AllocationStatusChanged"
)

// AllocationCreatedEvent is raised when a draft ledger is created
type AllocationCreatedEvent struct {
	shared.BaseDomainEvent
	PoolKey       string `json:"pool_key"`
	TotalQuantity int    `json:"total_quantity"`
}

// NewAllocationCreatedEvent creates a new AllocationCreatedEvent
func NewAllocationCreatedEvent(a *Allocation, at time.Time) *AllocationCreatedEvent {
	return &AllocationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationCreated, AggregateTypeAllocation, a.ID, at),
		PoolKey:         a.PoolKey,
		TotalQuantity:   a.TotalQuantity,
	}
}

// AllocationConsumedEvent is raised when quantity is spent against a ledger
type AllocationConsumedEvent struct {
	shared.BaseDomainEvent
	AllocationID      uuid.UUID `json:"allocation_id"`
	Quantity          int       `json:"quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
}

// NewAllocationConsumedEvent creates a new AllocationConsumedEvent
func NewAllocationConsumedEvent(a *Allocation, quantity int, at time.Time) *AllocationConsumedEvent {
	return &AllocationConsumedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeAllocationConsumed, AggregateTypeAllocation, a.ID, at),
		AllocationID:      a.ID,
		Quantity:          quantity,
		RemainingQuantity: a.RemainingQuantity(),
	}
}

// AllocationStatusChangedEvent is raised on every status transition, including auto-exhaustion
type AllocationStatusChangedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID `json:"allocation_id"`
	FromStatus   Status    `json:"from_status"`
	ToStatus     Status    `json:"to_status"`
}

// NewAllocationStatusChangedEvent creates a new AllocationStatusChangedEvent
func NewAllocationStatusChangedEvent(a *Allocation, from Status, at time.Time) *AllocationStatusChangedEvent {
	return &AllocationStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationStatusChanged, AggregateTypeAllocation, a.ID, at),
		AllocationID:    a.ID,
		FromStatus:      from,
		ToStatus:        a.Status,
	}
}
