package transfer

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// Status of a voucher transfer. Everything but pending is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal returns true for accepted, cancelled and expired
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// VoucherTransfer is a two-party handoff of a voucher to a new owner.
// The sender initiates, the recipient accepts before ExpiresAt.
type VoucherTransfer struct {
	shared.BaseEntity
	VoucherID   uuid.UUID
	FromOwnerID string
	ToOwnerID   string
	Status      Status
	InitiatedAt time.Time
	ExpiresAt   time.Time
	AcceptedAt  *time.Time
	CancelledAt *time.Time
	ExpiredAt   *time.Time
}

// NewVoucherTransfer creates a pending transfer
func NewVoucherTransfer(voucherID uuid.UUID, fromOwnerID, toOwnerID string, expiresAt, now time.Time) (*VoucherTransfer, error) {
	if toOwnerID == "" {
		return nil, shared.NewInvalidArgument("recipient reference is required")
	}
	if toOwnerID == fromOwnerID {
		return nil, shared.NewInvalidArgument("cannot transfer a voucher to its current owner")
	}
	if !expiresAt.After(now) {
		return nil, shared.NewInvalidArgument("transfer expiry must be in the future")
	}
	return &VoucherTransfer{
		BaseEntity:  shared.NewBaseEntity(now),
		VoucherID:   voucherID,
		FromOwnerID: fromOwnerID,
		ToOwnerID:   toOwnerID,
		Status:      StatusPending,
		InitiatedAt: now,
		ExpiresAt:   expiresAt,
	}, nil
}

// IsPending returns true while the transfer can still be resolved
func (t *VoucherTransfer) IsPending() bool {
	return t.Status == StatusPending
}

// IsExpiredAt returns true if the acceptance window has closed at the reference time
func (t *VoucherTransfer) IsExpiredAt(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

func (t *VoucherTransfer) requirePending(action string) error {
	if t.Status != StatusPending {
		return shared.NewInvalidTransition("cannot %s transfer %s in status %s", action, t.ID, t.Status)
	}
	return nil
}

// Accept resolves the transfer in favour of the recipient
func (t *VoucherTransfer) Accept(now time.Time) error {
	if err := t.requirePending("accept"); err != nil {
		return err
	}
	if t.IsExpiredAt(now) {
		return shared.NewInvalidTransition("transfer %s expired at %s", t.ID, t.ExpiresAt.Format(time.RFC3339))
	}
	t.Status = StatusAccepted
	t.AcceptedAt = &now
	t.Touch(now)
	return nil
}

// Cancel withdraws a pending transfer. The voucher is untouched.
func (t *VoucherTransfer) Cancel(now time.Time) error {
	if err := t.requirePending("cancel"); err != nil {
		return err
	}
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.Touch(now)
	return nil
}

// Expire closes a pending transfer whose window has passed
func (t *VoucherTransfer) Expire(now time.Time) error {
	if err := t.requirePending("expire"); err != nil {
		return err
	}
	t.Status = StatusExpired
	t.ExpiredAt = &now
	t.Touch(now)
	return nil
}

// Snapshot returns the audit view of the transfer
func (t *VoucherTransfer) Snapshot() map[string]any {
	return map[string]any{
		"voucher_id":    t.VoucherID.String(),
		"from_owner_id": t.FromOwnerID,
		"to_owner_id":   t.ToOwnerID,
		"status":        string(t.Status),
		"expires_at":    t.ExpiresAt,
	}
}
