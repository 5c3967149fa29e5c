package voucher

import (
	"context"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// VoucherRepository defines the interface for voucher persistence
type VoucherRepository interface {
	// FindByID finds a voucher by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Voucher, error)

	// FindByIDForUpdate loads the voucher holding an exclusive row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Voucher, error)

	// FindByIDsForUpdate loads and locks several vouchers in id order
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]Voucher, error)

	// FindByCase lists the members of a case
	FindByCase(ctx context.Context, caseID uuid.UUID) ([]Voucher, error)

	// ListByOwner lists vouchers held by an owner
	ListByOwner(ctx context.Context, ownerID string, filter shared.Filter) ([]Voucher, int64, error)

	// ListByAllocation lists vouchers issued against an allocation
	ListByAllocation(ctx context.Context, allocationID uuid.UUID, filter shared.Filter) ([]Voucher, int64, error)

	// FindForScan returns non-terminal, non-quarantined vouchers ordered by id,
	// starting strictly after the given id
	FindForScan(ctx context.Context, after uuid.UUID, limit int) ([]Voucher, error)

	// CreateBatch inserts new vouchers. Run it inside a transaction scope for all-or-nothing
	CreateBatch(ctx context.Context, vouchers []*Voucher) error

	// Save persists mutable fields with an optimistic version check.
	// The allocation reference is never written; a stored lineage that differs
	// from v.AllocationID yields shared.ErrImmutableFieldWrite.
	Save(ctx context.Context, v *Voucher) error
}
