package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
)

// VoucherTransferModel is the persistence model for a voucher transfer.
// At most one pending transfer may exist per voucher (partial unique index).
type VoucherTransferModel struct {
	BaseModel
	VoucherID   uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_transfer_one_pending,where:status = 'pending'"`
	FromOwnerID string          `gorm:"type:varchar(128);not null"`
	ToOwnerID   string          `gorm:"type:varchar(128);not null;index"`
	Status      transfer.Status `gorm:"type:varchar(20);not null;index:idx_transfer_status_expiry,priority:1"`
	InitiatedAt time.Time       `gorm:"not null"`
	ExpiresAt   time.Time       `gorm:"not null;index:idx_transfer_status_expiry,priority:2"`
	AcceptedAt  *time.Time
	CancelledAt *time.Time
	ExpiredAt   *time.Time
}

// TableName returns the table name for GORM
func (VoucherTransferModel) TableName() string {
	return "voucher_transfers"
}

// ToDomain converts the persistence model to a domain VoucherTransfer
func (m *VoucherTransferModel) ToDomain() *transfer.VoucherTransfer {
	return &transfer.VoucherTransfer{
		BaseEntity:  m.entity(),
		VoucherID:   m.VoucherID,
		FromOwnerID: m.FromOwnerID,
		ToOwnerID:   m.ToOwnerID,
		Status:      m.Status,
		InitiatedAt: m.InitiatedAt,
		ExpiresAt:   m.ExpiresAt,
		AcceptedAt:  m.AcceptedAt,
		CancelledAt: m.CancelledAt,
		ExpiredAt:   m.ExpiredAt,
	}
}

// VoucherTransferModelFromDomain creates a new persistence model from a domain VoucherTransfer
func VoucherTransferModelFromDomain(t *transfer.VoucherTransfer) *VoucherTransferModel {
	m := &VoucherTransferModel{
		VoucherID:   t.VoucherID,
		FromOwnerID: t.FromOwnerID,
		ToOwnerID:   t.ToOwnerID,
		Status:      t.Status,
		InitiatedAt: t.InitiatedAt,
		ExpiresAt:   t.ExpiresAt,
		AcceptedAt:  t.AcceptedAt,
		CancelledAt: t.CancelledAt,
		ExpiredAt:   t.ExpiredAt,
	}
	m.setEntity(t.BaseEntity)
	return m
}
