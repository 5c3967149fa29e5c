package allocation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AllocationRepository defines the interface for allocation persistence
type AllocationRepository interface {
	// FindByID finds an allocation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindByIDForUpdate loads the allocation holding a pool-scoped exclusive row lock.
	// Only meaningful inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindByPoolKey finds all allocations for a pool key
	FindByPoolKey(ctx context.Context, poolKey string) ([]Allocation, error)

	// Create inserts a new allocation
	Create(ctx context.Context, a *Allocation) error

	// SaveWithLock persists quantities and status with an optimistic version check.
	// Quantity and status are written in the same statement.
	SaveWithLock(ctx context.Context, a *Allocation) error
}

// ReservationRepository defines the interface for reservation persistence.
//
// Reservations are read without locking for the fast pre-check and read again
// under the allocation row lock for the authoritative check.
type ReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// SumHolding sums active, unexpired reservation quantities for an allocation
	SumHolding(ctx context.Context, allocationID uuid.UUID, at time.Time) (int, error)

	// FindHolding lists active, unexpired reservations for an allocation
	FindHolding(ctx context.Context, allocationID uuid.UUID, at time.Time) ([]Reservation, error)

	// Create inserts a new reservation
	Create(ctx context.Context, r *Reservation) error

	// Release deactivates a reservation if still active.
	// Returns false if it was already released.
	Release(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// ReleaseExpired deactivates all active reservations that expired before at and returns the count
	ReleaseExpired(ctx context.Context, at time.Time) (int, error)
}
