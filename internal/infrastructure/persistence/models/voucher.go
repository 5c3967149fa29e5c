package models

import (
	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
)

// VoucherModel is the persistence model for the Voucher aggregate root.
// allocation_id is written once on insert and never updated.
type VoucherModel struct {
	AggregateModel
	AllocationID             uuid.UUID              `gorm:"type:uuid;not null;index"`
	OwnerID                  string                 `gorm:"type:varchar(128);not null;index"`
	SkuRef                   string                 `gorm:"type:varchar(128);not null"`
	SaleRef                  string                 `gorm:"type:varchar(128)"`
	Quantity                 int                    `gorm:"not null;default:1"`
	LifecycleState           voucher.LifecycleState `gorm:"type:varchar(20);not null;index"`
	Tradable                 bool                   `gorm:"not null;default:true"`
	Giftable                 bool                   `gorm:"not null;default:true"`
	Suspended                bool                   `gorm:"not null;default:false"`
	SuspensionReason         *string                `gorm:"type:varchar(255)"`
	ExternalTradingReference *string                `gorm:"type:varchar(128)"`
	CaseEntitlementID        *uuid.UUID             `gorm:"type:uuid;index"`
	RequiresAttention        bool                   `gorm:"not null;default:false;index"`
	AttentionReason          *string                `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (VoucherModel) TableName() string {
	return "vouchers"
}

// ToDomain converts the persistence model to a domain Voucher
func (m *VoucherModel) ToDomain() *voucher.Voucher {
	return &voucher.Voucher{
		BaseAggregateRoot:        m.root(),
		AllocationID:             m.AllocationID,
		OwnerID:                  m.OwnerID,
		SkuRef:                   m.SkuRef,
		SaleRef:                  m.SaleRef,
		Quantity:                 m.Quantity,
		LifecycleState:           m.LifecycleState,
		Tradable:                 m.Tradable,
		Giftable:                 m.Giftable,
		Suspended:                m.Suspended,
		SuspensionReason:         m.SuspensionReason,
		ExternalTradingReference: m.ExternalTradingReference,
		CaseEntitlementID:        m.CaseEntitlementID,
		RequiresAttention:        m.RequiresAttention,
		AttentionReason:          m.AttentionReason,
	}
}

// FromDomain populates the persistence model from a domain Voucher
func (m *VoucherModel) FromDomain(v *voucher.Voucher) {
	m.setRoot(v.BaseAggregateRoot)
	m.AllocationID = v.AllocationID
	m.OwnerID = v.OwnerID
	m.SkuRef = v.SkuRef
	m.SaleRef = v.SaleRef
	m.Quantity = v.Quantity
	m.LifecycleState = v.LifecycleState
	m.Tradable = v.Tradable
	m.Giftable = v.Giftable
	m.Suspended = v.Suspended
	m.SuspensionReason = v.SuspensionReason
	m.ExternalTradingReference = v.ExternalTradingReference
	m.CaseEntitlementID = v.CaseEntitlementID
	m.RequiresAttention = v.RequiresAttention
	m.AttentionReason = v.AttentionReason
}

// VoucherModelFromDomain creates a new persistence model from a domain Voucher
func VoucherModelFromDomain(v *voucher.Voucher) *VoucherModel {
	m := &VoucherModel{}
	m.FromDomain(v)
	return m
}

// MutableColumns returns the columns a save may write.
// allocation_id and created_at are never written after insert.
func (m *VoucherModel) MutableColumns() map[string]any {
	return map[string]any{
		"owner_id":                   m.OwnerID,
		"sale_ref":                   m.SaleRef,
		"lifecycle_state":            m.LifecycleState,
		"tradable":                   m.Tradable,
		"giftable":                   m.Giftable,
		"suspended":                  m.Suspended,
		"suspension_reason":          m.SuspensionReason,
		"external_trading_reference": m.ExternalTradingReference,
		"case_entitlement_id":        m.CaseEntitlementID,
		"requires_attention":         m.RequiresAttention,
		"attention_reason":           m.AttentionReason,
		"version":                    m.Version,
		"updated_at":                 m.UpdatedAt,
	}
}
