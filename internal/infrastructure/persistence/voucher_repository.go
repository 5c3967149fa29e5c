package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormVoucherRepository implements VoucherRepository using GORM
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// FindByID finds a voucher by its ID
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a voucher and locks its row until the transaction ends
func (r *GormVoucherRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormVoucherRepository) find(db *gorm.DB, id uuid.UUID) (*voucher.Voucher, error) {
	var model models.VoucherModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForUpdate locks the given vouchers in id order. Missing ids are simply absent from the result.
func (r *GormVoucherRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]voucher.Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.VoucherModel
	if err := forUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVouchers(rows), nil
}

// FindByCase lists the members of a case
func (r *GormVoucherRepository) FindByCase(ctx context.Context, caseID uuid.UUID) ([]voucher.Voucher, error) {
	var rows []models.VoucherModel
	if err := r.db.WithContext(ctx).
		Where("case_entitlement_id = ?", caseID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVouchers(rows), nil
}

// ListByOwner lists vouchers held by an owner with the total count
func (r *GormVoucherRepository) ListByOwner(ctx context.Context, ownerID string, filter shared.Filter) ([]voucher.Voucher, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.VoucherModel{}).Where("owner_id = ?", ownerID), filter)
}

// ListByAllocation lists vouchers issued against an allocation with the total count
func (r *GormVoucherRepository) ListByAllocation(ctx context.Context, allocationID uuid.UUID, filter shared.Filter) ([]voucher.Voucher, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.VoucherModel{}).Where("allocation_id = ?", allocationID), filter)
}

func (r *GormVoucherRepository) list(query *gorm.DB, filter shared.Filter) ([]voucher.Voucher, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.VoucherModel
	if err := applyPage(query, filter, VoucherSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toVouchers(rows), total, nil
}

// FindForScan returns the next page of live, unquarantined vouchers after the given id
func (r *GormVoucherRepository) FindForScan(ctx context.Context, after uuid.UUID, limit int) ([]voucher.Voucher, error) {
	var rows []models.VoucherModel
	if err := r.db.WithContext(ctx).
		Where("id > ? AND requires_attention = ? AND lifecycle_state IN ?", after, false,
			[]voucher.LifecycleState{voucher.StateIssued, voucher.StateLocked}).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVouchers(rows), nil
}

// voucherInsertBatchSize keeps each INSERT well under the bind parameter
// limits of SQLite (32766) and Postgres (65535).
const voucherInsertBatchSize = 100

// CreateBatch inserts new vouchers in chunks of voucherInsertBatchSize.
// Inside a transaction scope all chunks commit or roll back together.
func (r *GormVoucherRepository) CreateBatch(ctx context.Context, vouchers []*voucher.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}
	rows := make([]*models.VoucherModel, len(vouchers))
	for i, v := range vouchers {
		rows[i] = models.VoucherModelFromDomain(v)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, voucherInsertBatchSize).Error
}

// Save writes the mutable columns with an optimistic version check.
// The update is also guarded by allocation_id, so a voucher whose lineage
// was changed in memory never matches.
func (r *GormVoucherRepository) Save(ctx context.Context, v *voucher.Voucher) error {
	model := models.VoucherModelFromDomain(v)
	result := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Where("id = ? AND version = ? AND allocation_id = ?", v.ID, v.Version-1, v.AllocationID).
		Updates(model.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	return r.diagnoseSave(ctx, v)
}

// diagnoseSave tells a lineage rewrite apart from a stale version or a missing row
func (r *GormVoucherRepository) diagnoseSave(ctx context.Context, v *voucher.Voucher) error {
	var stored models.VoucherModel
	err := r.db.WithContext(ctx).
		Select("id", "allocation_id", "version").
		First(&stored, "id = ?", v.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if err != nil {
		return err
	}
	if stored.AllocationID != v.AllocationID {
		return voucher.ErrImmutableLineage
	}
	return errOptimisticLock("Voucher")
}

func toVouchers(rows []models.VoucherModel) []voucher.Voucher {
	result := make([]voucher.Voucher, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

var _ voucher.VoucherRepository = (*GormVoucherRepository)(nil)
