package allocation

import (
	"time"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// Status is the lifecycle status of an allocation ledger
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusClosed    Status = "closed"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusExhausted, StatusClosed:
		return true
	}
	return false
}

// Allocation is a finite pool of physical supply from which vouchers are issued.
// It is the aggregate root for quantity bookkeeping; RemainingQuantity is derived.
type Allocation struct {
	shared.BaseAggregateRoot
	PoolKey          string
	TotalQuantity    int
	ConsumedQuantity int
	Status           Status
}

// NewAllocation creates a draft allocation for a pool
func NewAllocation(poolKey string, totalQuantity int, now time.Time) (*Allocation, error) {
	if poolKey == "" {
		return nil, shared.NewInvalidArgument("pool key is required")
	}
	if totalQuantity < 0 {
		return nil, shared.NewInvalidArgument("total quantity cannot be negative, got %d", totalQuantity)
	}

	a := &Allocation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		PoolKey:           poolKey,
		TotalQuantity:     totalQuantity,
		ConsumedQuantity:  0,
		Status:            StatusDraft,
	}
	a.AddDomainEvent(NewAllocationCreatedEvent(a, now))
	return a, nil
}

// RemainingQuantity returns total minus consumed, floored at zero
func (a *Allocation) RemainingQuantity() int {
	remaining := a.TotalQuantity - a.ConsumedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Available returns the remaining quantity net of the given reserved quantity, floored at zero
func (a *Allocation) Available(reserved int) int {
	available := a.RemainingQuantity() - reserved
	if available < 0 {
		return 0
	}
	return available
}

// Activate moves a draft allocation to active
func (a *Allocation) Activate(now time.Time) error {
	if a.Status != StatusDraft {
		return shared.NewInvalidTransition("allocation can only be activated from draft, current status is %s", a.Status)
	}
	old := a.Status
	a.Status = StatusActive
	a.Touch(now)
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationStatusChangedEvent(a, old, now))
	return nil
}

// Consume spends quantity against the pool.
// reserved is the quantity currently held by active reservations; it reduces
// availability without being consumed. When remaining reaches zero the
// allocation switches to exhausted in the same mutation.
func (a *Allocation) Consume(quantity, reserved int, now time.Time) error {
	if quantity <= 0 {
		return shared.NewInvalidArgument("consume quantity must be positive, got %d", quantity)
	}
	if a.Status != StatusActive {
		return shared.NewInvalidTransition("allocation must be active to consume, current status is %s", a.Status)
	}
	if available := a.Available(reserved); available < quantity {
		return shared.NewInsufficientAvailability("requested %d but only %d available", quantity, available)
	}

	a.ConsumedQuantity += quantity
	a.Touch(now)
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationConsumedEvent(a, quantity, now))

	if a.RemainingQuantity() == 0 {
		a.Status = StatusExhausted
		a.AddDomainEvent(NewAllocationStatusChangedEvent(a, StatusActive, now))
	}
	return nil
}

// Close closes an active or exhausted allocation. Closed is terminal.
func (a *Allocation) Close(now time.Time) error {
	if a.Status != StatusActive && a.Status != StatusExhausted {
		return shared.NewInvalidTransition("allocation can only be closed from active or exhausted, current status is %s", a.Status)
	}
	old := a.Status
	a.Status = StatusClosed
	a.Touch(now)
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationStatusChangedEvent(a, old, now))
	return nil
}

// CanReserve reports whether a reservation may be placed against the pool
func (a *Allocation) CanReserve(quantity, reserved int) error {
	if quantity <= 0 {
		return shared.NewInvalidArgument("reservation quantity must be positive, got %d", quantity)
	}
	if a.Status != StatusActive {
		return shared.NewInvalidTransition("allocation must be active to reserve, current status is %s", a.Status)
	}
	if available := a.Available(reserved); available < quantity {
		return shared.NewInsufficientAvailability("requested hold of %d but only %d available", quantity, available)
	}
	return nil
}

// Snapshot returns the audit view of the ledger
func (a *Allocation) Snapshot() map[string]any {
	return map[string]any{
		"pool_key":           a.PoolKey,
		"total_quantity":     a.TotalQuantity,
		"consumed_quantity":  a.ConsumedQuantity,
		"remaining_quantity": a.RemainingQuantity(),
		"status":             string(a.Status),
	}
}
