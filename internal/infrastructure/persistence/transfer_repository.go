package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransferRepository implements TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// FindByID finds a transfer by its ID
func (r *GormTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*transfer.VoucherTransfer, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate finds a transfer and locks its row until the transaction ends
func (r *GormTransferRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*transfer.VoucherTransfer, error) {
	return r.first(forUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

// FindPendingForVoucher returns the pending transfer of a voucher
func (r *GormTransferRepository) FindPendingForVoucher(ctx context.Context, voucherID uuid.UUID) (*transfer.VoucherTransfer, error) {
	return r.first(r.db.WithContext(ctx), "voucher_id = ? AND status = ?", voucherID, transfer.StatusPending)
}

func (r *GormTransferRepository) first(db *gorm.DB, query string, args ...any) (*transfer.VoucherTransfer, error) {
	var model models.VoucherTransferModel
	if err := db.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPendingDue returns one page of pending transfers due at the given instant,
// oldest first, keyset-paged on (expires_at, id)
func (r *GormTransferRepository) FindPendingDue(ctx context.Context, at time.Time, after transfer.DueCursor, limit int) ([]transfer.VoucherTransfer, error) {
	var rows []models.VoucherTransferModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", transfer.StatusPending, at)
	if after != (transfer.DueCursor{}) {
		query = query.Where("(expires_at > ? OR (expires_at = ? AND id > ?))", after.ExpiresAt, after.ExpiresAt, after.ID)
	}
	if err := query.
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]transfer.VoucherTransfer, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Create inserts a new transfer
func (r *GormTransferRepository) Create(ctx context.Context, t *transfer.VoucherTransfer) error {
	return r.db.WithContext(ctx).Create(models.VoucherTransferModelFromDomain(t)).Error
}

// ResolvePending writes a terminal status only if the row is still pending
func (r *GormTransferRepository) ResolvePending(ctx context.Context, t *transfer.VoucherTransfer) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VoucherTransferModel{}).
		Where("id = ? AND status = ?", t.ID, transfer.StatusPending).
		Updates(map[string]any{
			"status":       t.Status,
			"accepted_at":  t.AcceptedAt,
			"cancelled_at": t.CancelledAt,
			"expired_at":   t.ExpiredAt,
			"updated_at":   t.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

var _ transfer.TransferRepository = (*GormTransferRepository)(nil)
