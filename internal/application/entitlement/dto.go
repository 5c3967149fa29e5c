package entitlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
)

// CreateAllocationInput is the input for creating an allocation ledger
type CreateAllocationInput struct {
	PoolKey       string `json:"pool_key" validate:"required"`
	TotalQuantity int    `json:"total_quantity" validate:"gte=0"`
}

// AllocationSnapshot is the read view of an allocation ledger
type AllocationSnapshot struct {
	ID                uuid.UUID         `json:"id"`
	PoolKey           string            `json:"pool_key"`
	TotalQuantity     int               `json:"total_quantity"`
	ConsumedQuantity  int               `json:"consumed_quantity"`
	RemainingQuantity int               `json:"remaining_quantity"`
	Status            allocation.Status `json:"status"`
	Version           int               `json:"version"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// ToAllocationSnapshot converts the domain allocation to its read view
func ToAllocationSnapshot(a *allocation.Allocation) *AllocationSnapshot {
	return &AllocationSnapshot{
		ID:                a.ID,
		PoolKey:           a.PoolKey,
		TotalQuantity:     a.TotalQuantity,
		ConsumedQuantity:  a.ConsumedQuantity,
		RemainingQuantity: a.RemainingQuantity(),
		Status:            a.Status,
		Version:           a.Version,
		UpdatedAt:         a.UpdatedAt,
	}
}

// IssueInput is the input for issuing vouchers against an allocation
type IssueInput struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	OwnerID      string    `json:"owner_id"`
	SkuRef       string    `json:"sku_ref"`
	SaleRef      string    `json:"sale_ref"`
	Count        int       `json:"count"`
}

// ImportInput describes a single voucher coming from an external source
type ImportInput struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	OwnerID      string    `json:"owner_id"`
	SkuRef       string    `json:"sku_ref"`
	SaleRef      string    `json:"sale_ref"`
}

// CreateCaseInput is the input for grouping vouchers into a case
type CreateCaseInput struct {
	VoucherIDs []uuid.UUID `json:"voucher_ids"`
	OwnerID    string      `json:"owner_id"`
	SkuRef     string      `json:"sku_ref"`
}

// InitiateTransferInput is the input for starting a gift transfer.
// A zero ExpiresAt uses the configured default window.
type InitiateTransferInput struct {
	VoucherID uuid.UUID `json:"voucher_id"`
	ToOwnerID string    `json:"to_owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListResult is a page of vouchers
type ListResult struct {
	Items []voucher.Voucher `json:"items"`
	Total int64             `json:"total"`
}

// ExpirationStats summarises one transfer expiry sweep
type ExpirationStats struct {
	TotalDue    int       `json:"total_due"`
	Expired     int       `json:"expired"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ReservationReleaseStats summarises one reservation release sweep
type ReservationReleaseStats struct {
	Released    int       `json:"released"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ScanStats summarises one anomaly scan
type ScanStats struct {
	Scanned     int       `json:"scanned"`
	Quarantined int       `json:"quarantined"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}
