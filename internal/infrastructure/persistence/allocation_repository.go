package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errOptimisticLock is returned when a versioned save matched no row
func errOptimisticLock(entity string) error {
	return shared.NewDomainError(shared.KindConcurrencyConflict, "OPTIMISTIC_LOCK_FAILED",
		entity+" was modified by another transaction")
}

// forUpdate adds an exclusive row lock. The sqlite dialect drops the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.Allocation, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds an allocation and locks its row until the transaction ends
func (r *GormAllocationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*allocation.Allocation, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormAllocationRepository) find(db *gorm.DB, id uuid.UUID) (*allocation.Allocation, error) {
	var model models.AllocationModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPoolKey finds all allocations for a pool key
func (r *GormAllocationRepository) FindByPoolKey(ctx context.Context, poolKey string) ([]allocation.Allocation, error) {
	var rows []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("pool_key = ?", poolKey).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]allocation.Allocation, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Create inserts a new allocation
func (r *GormAllocationRepository) Create(ctx context.Context, a *allocation.Allocation) error {
	return r.db.WithContext(ctx).Create(models.AllocationModelFromDomain(a)).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormAllocationRepository) SaveWithLock(ctx context.Context, a *allocation.Allocation) error {
	result := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Where("id = ? AND version = ?", a.ID, a.Version-1).
		Updates(map[string]any{
			"total_quantity":    a.TotalQuantity,
			"consumed_quantity": a.ConsumedQuantity,
			"status":            a.Status,
			"version":           a.Version,
			"updated_at":        a.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errOptimisticLock("Allocation")
	}
	return nil
}

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormReservationRepository) holding(ctx context.Context, allocationID uuid.UUID, at time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("allocation_id = ? AND active = ? AND expires_at > ?", allocationID, true, at)
}

// SumHolding sums active, unexpired reservation quantities for an allocation
func (r *GormReservationRepository) SumHolding(ctx context.Context, allocationID uuid.UUID, at time.Time) (int, error) {
	var total int64
	if err := r.holding(ctx, allocationID, at).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// FindHolding lists active, unexpired reservations for an allocation
func (r *GormReservationRepository) FindHolding(ctx context.Context, allocationID uuid.UUID, at time.Time) ([]allocation.Reservation, error) {
	var rows []models.ReservationModel
	if err := r.holding(ctx, allocationID, at).
		Order("expires_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]allocation.Reservation, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *allocation.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(res)).Error
}

// Release deactivates a reservation if still active
func (r *GormReservationRepository) Release(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{
			"active":      false,
			"released_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseExpired releases all expired reservations and returns count
func (r *GormReservationRepository) ReleaseExpired(ctx context.Context, at time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("active = ? AND expires_at <= ?", true, at).
		Updates(map[string]any{
			"active":      false,
			"released_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

var (
	_ allocation.AllocationRepository  = (*GormAllocationRepository)(nil)
	_ allocation.ReservationRepository = (*GormReservationRepository)(nil)
)
