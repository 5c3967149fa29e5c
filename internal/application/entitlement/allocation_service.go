package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultReservationTTL is used when Reserve is called without a TTL
const DefaultReservationTTL = 15 * time.Minute

// AllocationService owns quantity bookkeeping for allocation ledgers.
// Consumption is serialised per allocation with a row lock; the unlocked
// pre-check only exists to fail fast.
type AllocationService struct {
	base
	reservationTTL time.Duration
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(deps Dependencies) *AllocationService {
	return &AllocationService{
		base:           newBase(deps, "allocation"),
		reservationTTL: DefaultReservationTTL,
	}
}

// SetReservationTTL overrides the default reservation lifetime
func (s *AllocationService) SetReservationTTL(ttl time.Duration) {
	if ttl > 0 {
		s.reservationTTL = ttl
	}
}

// Create creates a draft allocation ledger
func (s *AllocationService) Create(ctx context.Context, input CreateAllocationInput) (*AllocationSnapshot, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	a, err := allocation.NewAllocation(input.PoolKey, input.TotalQuantity, s.deps.Clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		if err := repos.AllocationRepo().Create(ctx, a); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityAllocation, a.ID, "created", nil, a.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, a)
	s.logger.Info("Allocation created",
		zap.String("allocation_id", a.ID.String()),
		zap.String("pool_key", a.PoolKey),
		zap.Int("total_quantity", a.TotalQuantity),
	)
	return ToAllocationSnapshot(a), nil
}

// Get returns an allocation ledger
func (s *AllocationService) Get(ctx context.Context, id uuid.UUID) (*AllocationSnapshot, error) {
	a, err := s.deps.Repos.AllocationRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToAllocationSnapshot(a), nil
}

// Activate moves a draft ledger to active
func (s *AllocationService) Activate(ctx context.Context, id uuid.UUID) (*AllocationSnapshot, error) {
	return s.changeStatus(ctx, id, "activated", func(a *allocation.Allocation, now time.Time) error {
		return a.Activate(now)
	})
}

// Close closes an active or exhausted ledger
func (s *AllocationService) Close(ctx context.Context, id uuid.UUID) (*AllocationSnapshot, error) {
	return s.changeStatus(ctx, id, "closed", func(a *allocation.Allocation, now time.Time) error {
		return a.Close(now)
	})
}

func (s *AllocationService) changeStatus(ctx context.Context, id uuid.UUID, event string, apply func(*allocation.Allocation, time.Time) error) (*AllocationSnapshot, error) {
	var a *allocation.Allocation
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		a, err = repos.AllocationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		old := a.Snapshot()
		if err := apply(a, s.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.AllocationRepo().SaveWithLock(ctx, a); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityAllocation, a.ID, event, old, a.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, a)
	return ToAllocationSnapshot(a), nil
}

// Consume spends quantity against an allocation and returns the updated ledger.
func (s *AllocationService) Consume(ctx context.Context, id uuid.UUID, quantity int) (snapshot *AllocationSnapshot, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "consume",
		telemetry.WithAttribute("allocation_id", id.String()),
		telemetry.WithAttribute("quantity", quantity),
	)
	defer func() { finishSpan(span, err) }()

	if quantity <= 0 {
		return nil, shared.NewInvalidArgument("consume quantity must be positive, got %d", quantity)
	}
	if err := s.precheck(ctx, id, quantity); err != nil {
		s.deps.Metrics.RecordConsumption(ctx, quantity, telemetry.OutcomeRejected)
		return nil, err
	}

	var a *allocation.Allocation
	err = s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		a, err = s.consumeTx(ctx, repos, id, quantity)
		return err
	})
	if err != nil {
		s.deps.Metrics.RecordConsumption(ctx, quantity, telemetry.OutcomeRejected)
		return nil, err
	}

	s.deps.Metrics.RecordConsumption(ctx, quantity, telemetry.OutcomeSuccess)
	s.publish(ctx, a)
	return ToAllocationSnapshot(a), nil
}

// precheck reads without locking. It can only produce false failures for
// requests that would also fail under the lock, never false successes.
func (s *AllocationService) precheck(ctx context.Context, id uuid.UUID, quantity int) error {
	a, err := s.deps.Repos.AllocationRepo().FindByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != allocation.StatusActive {
		return shared.NewInvalidTransition("allocation must be active to consume, current status is %s", a.Status)
	}
	reserved, err := s.deps.Repos.ReservationRepo().SumHolding(ctx, id, s.deps.Clock.Now())
	if err != nil {
		return err
	}
	if available := a.Available(reserved); available < quantity {
		return shared.NewInsufficientAvailability("requested %d but only %d available", quantity, available)
	}
	return nil
}

// consumeTx is the authoritative consume. It must run inside a transaction
// and is shared with voucher issuance.
func (s *AllocationService) consumeTx(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, quantity int) (*allocation.Allocation, error) {
	a, err := repos.AllocationRepo().FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.deps.Clock.Now()
	reserved, err := repos.ReservationRepo().SumHolding(ctx, id, now)
	if err != nil {
		return nil, err
	}

	old := a.Snapshot()
	if err := a.Consume(quantity, reserved, now); err != nil {
		return nil, err
	}
	if err := repos.AllocationRepo().SaveWithLock(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, shared.AuditEntityAllocation, a.ID, "consumed", old, a.Snapshot())

	if a.Status == allocation.StatusExhausted {
		s.logger.Info("Allocation exhausted",
			zap.String("allocation_id", a.ID.String()),
			zap.String("pool_key", a.PoolKey),
		)
	}
	return a, nil
}

// CheckAvailability reports whether quantity could be consumed right now
func (s *AllocationService) CheckAvailability(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}
	a, err := s.deps.Repos.AllocationRepo().FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status != allocation.StatusActive {
		return false, nil
	}
	reserved, err := s.deps.Repos.ReservationRepo().SumHolding(ctx, id, s.deps.Clock.Now())
	if err != nil {
		return false, err
	}
	return a.Available(reserved) >= quantity, nil
}

// RemainingAvailable returns remaining quantity net of active reservations, floored at zero
func (s *AllocationService) RemainingAvailable(ctx context.Context, id uuid.UUID) (int, error) {
	a, err := s.deps.Repos.AllocationRepo().FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	reserved, err := s.deps.Repos.ReservationRepo().SumHolding(ctx, id, s.deps.Clock.Now())
	if err != nil {
		return 0, err
	}
	return a.Available(reserved), nil
}

// Reserve places a temporary hold on quantity. A non-positive ttl uses the default.
func (s *AllocationService) Reserve(ctx context.Context, id uuid.UUID, quantity int, ttl time.Duration) (*allocation.Reservation, error) {
	if quantity <= 0 {
		return nil, shared.NewInvalidArgument("reservation quantity must be positive, got %d", quantity)
	}
	if ttl <= 0 {
		ttl = s.reservationTTL
	}

	var r *allocation.Reservation
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		a, err := repos.AllocationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.deps.Clock.Now()
		reserved, err := repos.ReservationRepo().SumHolding(ctx, id, now)
		if err != nil {
			return err
		}
		if err := a.CanReserve(quantity, reserved); err != nil {
			return err
		}
		r, err = allocation.NewReservation(id, quantity, now.Add(ttl), now)
		if err != nil {
			return err
		}
		if err := repos.ReservationRepo().Create(ctx, r); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityReservation, r.ID, "reserved", nil, map[string]any{
			"allocation_id": id.String(),
			"quantity":      quantity,
			"expires_at":    r.ExpiresAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReleaseReservation deactivates a reservation
func (s *AllocationService) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error {
	return s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		r, err := repos.ReservationRepo().FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		released, err := repos.ReservationRepo().Release(ctx, reservationID, s.deps.Clock.Now())
		if err != nil {
			return err
		}
		if !released {
			return shared.NewAlreadyInState("reservation %s is already released", reservationID)
		}
		s.record(ctx, shared.AuditEntityReservation, reservationID, "released",
			map[string]any{"active": true, "quantity": r.Quantity},
			map[string]any{"active": false, "quantity": r.Quantity},
		)
		return nil
	})
}

// ReleaseExpiredReservations deactivates every reservation past its expiry.
// Safe to run concurrently with itself.
func (s *AllocationService) ReleaseExpiredReservations(ctx context.Context) (*ReservationReleaseStats, error) {
	now := s.deps.Clock.Now()
	stats := &ReservationReleaseStats{ProcessedAt: now}

	released, err := s.deps.Repos.ReservationRepo().ReleaseExpired(ctx, now)
	if err != nil {
		s.logger.Error("Failed to release expired reservations", zap.Error(err))
		return nil, err
	}
	stats.Released = released
	s.deps.Metrics.RecordSweep(ctx, telemetry.SweepReservations, released, 0, 0)

	if released > 0 {
		s.logger.Info("Released expired reservations", zap.Int("count", released))
	} else {
		s.logger.Debug("No expired reservations found")
	}
	return stats, nil
}
