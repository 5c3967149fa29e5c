package caseentitlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// AggregateTypeCase is the aggregate type name
const AggregateTypeCase = "CaseEntitlement"

// Event type constants
const (
	EventTypeCaseCreated = "CaseEntitlementCreated"
	EventTypeCaseBroken  = "CaseEntitlementBroken"
)

// CaseCreatedEvent is raised when vouchers are grouped into a case
type CaseCreatedEvent struct {
	shared.BaseDomainEvent
	OwnerID    string      `json:"owner_id"`
	VoucherIDs []uuid.UUID `json:"voucher_ids"`
}

// NewCaseCreatedEvent creates a new CaseCreatedEvent
func NewCaseCreatedEvent(c *CaseEntitlement, at time.Time) *CaseCreatedEvent {
	return &CaseCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseCreated, AggregateTypeCase, c.ID, at),
		OwnerID:         c.OwnerID,
		VoucherIDs:      c.VoucherIDs,
	}
}

// CaseBrokenEvent is raised when a case loses its intact status
type CaseBrokenEvent struct {
	shared.BaseDomainEvent
	Reason BrokenReason `json:"reason"`
}

// NewCaseBrokenEvent creates a new CaseBrokenEvent
func NewCaseBrokenEvent(c *CaseEntitlement, at time.Time) *CaseBrokenEvent {
	e := &CaseBrokenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseBroken, AggregateTypeCase, c.ID, at),
	}
	if c.BrokenReason != nil {
		e.Reason = *c.BrokenReason
	}
	return e
}
