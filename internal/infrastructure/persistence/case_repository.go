package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCaseRepository implements CaseRepository using GORM
type GormCaseRepository struct {
	db *gorm.DB
}

// NewGormCaseRepository creates a new GormCaseRepository
func NewGormCaseRepository(db *gorm.DB) *GormCaseRepository {
	return &GormCaseRepository{db: db}
}

// FindByID finds a case and its member ids
func (r *GormCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*caseentitlement.CaseEntitlement, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a case and locks its row until the transaction ends
func (r *GormCaseRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*caseentitlement.CaseEntitlement, error) {
	return r.find(ctx, forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormCaseRepository) find(ctx context.Context, db *gorm.DB, id uuid.UUID) (*caseentitlement.CaseEntitlement, error) {
	var model models.CaseEntitlementModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var memberIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Where("case_entitlement_id = ?", id).
		Order("id ASC").
		Pluck("id", &memberIDs).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(memberIDs), nil
}

// Create inserts the case row
func (r *GormCaseRepository) Create(ctx context.Context, c *caseentitlement.CaseEntitlement) error {
	return r.db.WithContext(ctx).Create(models.CaseEntitlementModelFromDomain(c)).Error
}

// Save persists status and broken fields with an optimistic version check
func (r *GormCaseRepository) Save(ctx context.Context, c *caseentitlement.CaseEntitlement) error {
	result := r.db.WithContext(ctx).
		Model(&models.CaseEntitlementModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(map[string]any{
			"status":        c.Status,
			"broken_at":     c.BrokenAt,
			"broken_reason": c.BrokenReason,
			"version":       c.Version,
			"updated_at":    c.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errOptimisticLock("Case entitlement")
	}
	return nil
}

var _ caseentitlement.CaseRepository = (*GormCaseRepository)(nil)
