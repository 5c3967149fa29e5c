package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
)

// CaseEntitlementModel is the persistence model for a case entitlement.
// Members are not stored here; vouchers point back through case_entitlement_id.
type CaseEntitlementModel struct {
	AggregateModel
	OwnerID      string                 `gorm:"type:varchar(128);not null;index"`
	SkuRef       string                 `gorm:"type:varchar(128);not null"`
	Status       caseentitlement.Status `gorm:"type:varchar(20);not null;default:'intact'"`
	BrokenAt     *time.Time
	BrokenReason *caseentitlement.BrokenReason `gorm:"type:varchar(32)"`
}

// TableName returns the table name for GORM
func (CaseEntitlementModel) TableName() string {
	return "case_entitlements"
}

// ToDomain converts the persistence model to a domain CaseEntitlement with the given members
func (m *CaseEntitlementModel) ToDomain(voucherIDs []uuid.UUID) *caseentitlement.CaseEntitlement {
	return &caseentitlement.CaseEntitlement{
		BaseAggregateRoot: m.root(),
		OwnerID:           m.OwnerID,
		SkuRef:            m.SkuRef,
		Status:            m.Status,
		BrokenAt:          m.BrokenAt,
		BrokenReason:      m.BrokenReason,
		VoucherIDs:        voucherIDs,
	}
}

// CaseEntitlementModelFromDomain creates a new persistence model from a domain CaseEntitlement
func CaseEntitlementModelFromDomain(c *caseentitlement.CaseEntitlement) *CaseEntitlementModel {
	m := &CaseEntitlementModel{
		OwnerID:      c.OwnerID,
		SkuRef:       c.SkuRef,
		Status:       c.Status,
		BrokenAt:     c.BrokenAt,
		BrokenReason: c.BrokenReason,
	}
	m.setRoot(c.BaseAggregateRoot)
	return m
}
