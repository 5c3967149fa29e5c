package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// Reservation is a short-lived hold against an allocation.
// It reduces effective availability without touching ConsumedQuantity.
type Reservation struct {
	shared.BaseEntity
	AllocationID uuid.UUID
	Quantity     int
	Active       bool
	ExpiresAt    time.Time
	ReleasedAt   *time.Time
}

// NewReservation creates an active reservation
func NewReservation(allocationID uuid.UUID, quantity int, expiresAt, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, shared.NewInvalidArgument("reservation quantity must be positive, got %d", quantity)
	}
	if !expiresAt.After(now) {
		return nil, shared.NewInvalidArgument("reservation expiry must be in the future")
	}
	return &Reservation{
		BaseEntity:   shared.NewBaseEntity(now),
		AllocationID: allocationID,
		Quantity:     quantity,
		Active:       true,
		ExpiresAt:    expiresAt,
	}, nil
}

// IsHolding returns true if the reservation still counts against availability at the given instant
func (r *Reservation) IsHolding(at time.Time) bool {
	return r.Active && at.Before(r.ExpiresAt)
}

// IsExpiredAt returns true once the reference time reaches ExpiresAt.
// It is the complement of IsHolding for an active reservation.
func (r *Reservation) IsExpiredAt(at time.Time) bool {
	return !at.Before(r.ExpiresAt)
}

// Release deactivates the reservation
func (r *Reservation) Release(now time.Time) error {
	if !r.Active {
		return shared.NewAlreadyInState("reservation %s is already released", r.ID)
	}
	r.Active = false
	r.ReleasedAt = &now
	r.Touch(now)
	return nil
}
