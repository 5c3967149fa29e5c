package caseentitlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// Status of a case entitlement. Broken is one-way.
type Status string

const (
	StatusIntact Status = "intact"
	StatusBroken Status = "broken"
)

// BrokenReason records why a case lost its intact status
type BrokenReason string

const (
	BrokenReasonTransfer          BrokenReason = "transfer"
	BrokenReasonTrade             BrokenReason = "trade"
	BrokenReasonPartialRedemption BrokenReason = "partial_redemption"
)

// IsValid reports whether r is a known reason
func (r BrokenReason) IsValid() bool {
	switch r {
	case BrokenReasonTransfer, BrokenReasonTrade, BrokenReasonPartialRedemption:
		return true
	}
	return false
}

// ErrAlreadyBroken is returned when breaking a case that is already broken
var ErrAlreadyBroken = shared.NewDomainError(shared.KindAlreadyInState, "ALREADY_BROKEN", "Case entitlement is already broken")

// CaseEntitlement groups vouchers that together form one physical case.
// Membership is fixed at creation and stored as a back-reference on each voucher.
type CaseEntitlement struct {
	shared.BaseAggregateRoot
	OwnerID      string
	SkuRef       string
	Status       Status
	BrokenAt     *time.Time
	BrokenReason *BrokenReason
	VoucherIDs   []uuid.UUID
}

// NewCaseEntitlement creates an intact case for the given members
func NewCaseEntitlement(ownerID, skuRef string, voucherIDs []uuid.UUID, now time.Time) (*CaseEntitlement, error) {
	if ownerID == "" {
		return nil, shared.NewInvalidArgument("owner reference is required")
	}
	if len(voucherIDs) == 0 {
		return nil, shared.NewInvalidArgument("a case needs at least one voucher")
	}
	seen := make(map[uuid.UUID]struct{}, len(voucherIDs))
	for _, id := range voucherIDs {
		if _, dup := seen[id]; dup {
			return nil, shared.NewInvalidArgument("voucher %s appears more than once", id)
		}
		seen[id] = struct{}{}
	}

	members := make([]uuid.UUID, len(voucherIDs))
	copy(members, voucherIDs)

	c := &CaseEntitlement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		OwnerID:           ownerID,
		SkuRef:            skuRef,
		Status:            StatusIntact,
		VoucherIDs:        members,
	}
	c.AddDomainEvent(NewCaseCreatedEvent(c, now))
	return c, nil
}

// IsBroken returns true once the case has been broken
func (c *CaseEntitlement) IsBroken() bool {
	return c.Status == StatusBroken
}

// Break marks the case broken. It never reverts.
func (c *CaseEntitlement) Break(reason BrokenReason, now time.Time) error {
	if !reason.IsValid() {
		return shared.NewInvalidArgument("invalid broken reason %q", reason)
	}
	if c.Status != StatusIntact {
		return ErrAlreadyBroken
	}
	c.Status = StatusBroken
	c.BrokenAt = &now
	c.BrokenReason = &reason
	c.Touch(now)
	c.IncrementVersion()
	c.AddDomainEvent(NewCaseBrokenEvent(c, now))
	return nil
}

// Member is the part of a voucher the integrity check looks at
type Member struct {
	OwnerID  string
	Redeemed bool
}

// HoldsIntegrity reports whether every member is still owned by the case owner and unredeemed
func (c *CaseEntitlement) HoldsIntegrity(members []Member) bool {
	if len(members) != len(c.VoucherIDs) {
		return false
	}
	for _, m := range members {
		if m.OwnerID != c.OwnerID || m.Redeemed {
			return false
		}
	}
	return true
}

// Snapshot returns the audit view of the case
func (c *CaseEntitlement) Snapshot() map[string]any {
	ids := make([]string, len(c.VoucherIDs))
	for i, id := range c.VoucherIDs {
		ids[i] = id.String()
	}
	s := map[string]any{
		"owner_id":    c.OwnerID,
		"sku_ref":     c.SkuRef,
		"status":      string(c.Status),
		"voucher_ids": ids,
	}
	if c.BrokenReason != nil {
		s["broken_reason"] = string(*c.BrokenReason)
	}
	return s
}
