package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DueCursor is a keyset position in the (expires_at, id) order of due transfers.
// The zero value starts from the beginning.
type DueCursor struct {
	ExpiresAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the position just past t
func CursorAfter(t *VoucherTransfer) DueCursor {
	return DueCursor{ExpiresAt: t.ExpiresAt, ID: t.ID}
}

// TransferRepository defines the interface for voucher transfer persistence
type TransferRepository interface {
	// FindByID finds a transfer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*VoucherTransfer, error)

	// FindByIDForUpdate loads the transfer holding an exclusive row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*VoucherTransfer, error)

	// FindPendingForVoucher returns the pending transfer for a voucher, or shared.ErrNotFound
	FindPendingForVoucher(ctx context.Context, voucherID uuid.UUID) (*VoucherTransfer, error)

	// FindPendingDue returns pending transfers whose expiry is at or before the
	// given instant, ordered by (expires_at, id) and strictly after the cursor
	FindPendingDue(ctx context.Context, at time.Time, after DueCursor, limit int) ([]VoucherTransfer, error)

	// Create inserts a new transfer
	Create(ctx context.Context, t *VoucherTransfer) error

	// ResolvePending writes t's terminal status only if the stored row is still pending.
	// Returns false when another writer resolved it first.
	ResolvePending(ctx context.Context, t *VoucherTransfer) (bool, error)
}
