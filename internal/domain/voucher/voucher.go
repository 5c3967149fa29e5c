package voucher

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// LifecycleState is the tagged lifecycle state of a voucher.
// Suspension is a separate axis and never appears here.
type LifecycleState string

const (
	StateIssued    LifecycleState = "issued"
	StateLocked    LifecycleState = "locked"
	StateRedeemed  LifecycleState = "redeemed"
	StateCancelled LifecycleState = "cancelled"
)

// IsTerminal returns true for redeemed and cancelled
func (s LifecycleState) IsTerminal() bool {
	return s == StateRedeemed || s == StateCancelled
}

// ErrImmutableLineage is returned whenever something tries to rewrite a voucher's allocation
var ErrImmutableLineage = shared.NewDomainError(shared.KindImmutableFieldWrite, "IMMUTABLE_ALLOCATION_ID", "Voucher allocation lineage cannot be changed once set")

// Voucher is a single-unit entitlement bound permanently to the allocation it was issued from.
type Voucher struct {
	shared.BaseAggregateRoot
	// AllocationID is write-once lineage. Use AssignAllocation; the repository
	// rejects any persisted change to it.
	AllocationID             uuid.UUID
	OwnerID                  string
	SkuRef                   string
	SaleRef                  string
	Quantity                 int
	LifecycleState           LifecycleState
	Tradable                 bool
	Giftable                 bool
	Suspended                bool
	SuspensionReason         *string
	ExternalTradingReference *string
	CaseEntitlementID        *uuid.UUID
	RequiresAttention        bool
	AttentionReason          *string
}

// NewVoucher creates an issued voucher for one physical unit of the given allocation
func NewVoucher(allocationID uuid.UUID, ownerID, skuRef, saleRef string, now time.Time) (*Voucher, error) {
	if ownerID == "" {
		return nil, shared.NewInvalidArgument("owner reference is required")
	}
	v := &Voucher{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		OwnerID:           ownerID,
		SkuRef:            skuRef,
		SaleRef:           saleRef,
		Quantity:          1,
		LifecycleState:    StateIssued,
		Tradable:          true,
		Giftable:          true,
	}
	if err := v.AssignAllocation(allocationID); err != nil {
		return nil, err
	}
	v.AddDomainEvent(NewVoucherIssuedEvent(v, now))
	return v, nil
}

// AssignAllocation sets the lineage exactly once
func (v *Voucher) AssignAllocation(allocationID uuid.UUID) error {
	if allocationID == uuid.Nil {
		return shared.NewInvalidArgument("allocation reference is required")
	}
	if v.AllocationID != uuid.Nil {
		return ErrImmutableLineage
	}
	v.AllocationID = allocationID
	return nil
}

// IsTerminal returns true once redeemed or cancelled
func (v *Voucher) IsTerminal() bool {
	return v.LifecycleState.IsTerminal()
}

// IsGrouped returns true if the voucher references a case
func (v *Voucher) IsGrouped() bool {
	return v.CaseEntitlementID != nil
}

func (v *Voucher) guardNotSuspended(action string) error {
	if v.Suspended {
		return shared.NewInvalidTransition("cannot %s voucher %s while it is suspended", action, v.ID)
	}
	return nil
}

func (v *Voucher) transition(from, to LifecycleState, action string, now time.Time) error {
	if err := v.guardNotSuspended(action); err != nil {
		return err
	}
	if v.LifecycleState != from {
		return shared.NewInvalidTransition("cannot %s voucher in state %s, must be %s", action, v.LifecycleState, from)
	}
	v.LifecycleState = to
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherLifecycleChangedEvent(v, from, now))
	return nil
}

// LockForFulfillment moves issued to locked
func (v *Voucher) LockForFulfillment(now time.Time) error {
	return v.transition(StateIssued, StateLocked, "lock", now)
}

// Unlock moves locked back to issued
func (v *Voucher) Unlock(now time.Time) error {
	return v.transition(StateLocked, StateIssued, "unlock", now)
}

// Redeem moves locked to redeemed. Case breaking is the caller's job and must
// happen in the same transaction.
func (v *Voucher) Redeem(now time.Time) error {
	return v.transition(StateLocked, StateRedeemed, "redeem", now)
}

// Cancel moves issued to cancelled. Consumed ledger quantity is not returned.
func (v *Voucher) Cancel(now time.Time) error {
	return v.transition(StateIssued, StateCancelled, "cancel", now)
}

// Suspend sets the suspension flag
func (v *Voucher) Suspend(reason string, now time.Time) error {
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot suspend voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if v.Suspended {
		return shared.NewAlreadyInState("voucher %s is already suspended", v.ID)
	}
	v.Suspended = true
	if reason != "" {
		v.SuspensionReason = &reason
	}
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherSuspensionChangedEvent(v, now))
	return nil
}

// Reactivate clears the suspension flag and any external trading reference
func (v *Voucher) Reactivate(now time.Time) error {
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot reactivate voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if !v.Suspended {
		return shared.NewInvalidTransition("voucher %s is not suspended", v.ID)
	}
	v.Suspended = false
	v.SuspensionReason = nil
	v.ExternalTradingReference = nil
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherSuspensionChangedEvent(v, now))
	return nil
}

// SuspendForTrading suspends the voucher while it is listed on an external trading venue.
// hasPendingTransfer must be resolved by the caller under the voucher row lock.
func (v *Voucher) SuspendForTrading(tradingRef string, hasPendingTransfer bool, now time.Time) error {
	if tradingRef == "" {
		return shared.NewInvalidArgument("trading reference is required")
	}
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot trade voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if v.Suspended {
		return shared.NewAlreadyInState("voucher %s is already suspended", v.ID)
	}
	if v.LifecycleState != StateIssued {
		return shared.NewInvalidTransition("voucher %s must be issued to be traded, current state is %s", v.ID, v.LifecycleState)
	}
	if !v.Tradable {
		return shared.NewInvalidTransition("voucher %s is not tradable", v.ID)
	}
	if hasPendingTransfer {
		return shared.NewInvalidTransition("voucher %s has a pending transfer", v.ID)
	}

	reason := "external_trading"
	v.Suspended = true
	v.SuspensionReason = &reason
	v.ExternalTradingReference = &tradingRef
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherSuspensionChangedEvent(v, now))
	return nil
}

// CompleteTrading hands the voucher to the buyer and lifts the trading suspension.
// Lineage is never touched.
func (v *Voucher) CompleteTrading(tradingRef, newOwnerID string, now time.Time) error {
	if newOwnerID == "" {
		return shared.NewInvalidArgument("new owner reference is required")
	}
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot complete trading for voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if !v.Suspended {
		return shared.NewInvalidTransition("voucher %s is not suspended for trading", v.ID)
	}
	if v.ExternalTradingReference == nil || *v.ExternalTradingReference != tradingRef {
		return shared.NewInvalidTransition("trading reference does not match voucher %s", v.ID)
	}

	previousOwner := v.OwnerID
	v.OwnerID = newOwnerID
	v.Suspended = false
	v.SuspensionReason = nil
	v.ExternalTradingReference = nil
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherOwnershipChangedEvent(v, previousOwner, "trade", now))
	return nil
}

func (v *Voucher) guardFlagMutation() error {
	if v.Suspended {
		return shared.NewInvalidTransition("cannot change flags of voucher %s while suspended", v.ID)
	}
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot change flags of voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if v.LifecycleState != StateIssued {
		return shared.NewInvalidTransition("flags of voucher %s can only change while issued, current state is %s", v.ID, v.LifecycleState)
	}
	return nil
}

// SetTradable updates the tradable flag
func (v *Voucher) SetTradable(tradable bool, now time.Time) error {
	if err := v.guardFlagMutation(); err != nil {
		return err
	}
	v.Tradable = tradable
	v.Touch(now)
	v.IncrementVersion()
	return nil
}

// SetGiftable updates the giftable flag
func (v *Voucher) SetGiftable(giftable bool, now time.Time) error {
	if err := v.guardFlagMutation(); err != nil {
		return err
	}
	v.Giftable = giftable
	v.Touch(now)
	v.IncrementVersion()
	return nil
}

// ValidateFulfillmentLineage fails unless stock is drawn from the exact pool the voucher was issued against
func (v *Voucher) ValidateFulfillmentLineage(candidateAllocationID uuid.UUID) error {
	if candidateAllocationID != v.AllocationID {
		return shared.NewDomainError(shared.KindLineageMismatch, string(shared.KindLineageMismatch),
			"voucher "+v.ID.String()+" was issued against allocation "+v.AllocationID.String()+
				" and cannot be fulfilled from "+candidateAllocationID.String())
	}
	return nil
}

// Eligibility is the outcome of a fulfillment eligibility query
type Eligibility struct {
	Fulfillable bool   `json:"fulfillable"`
	Reason      string `json:"reason,omitempty"`
}

// CheckFulfillmentEligibility reports whether the voucher can be fulfilled right now
func (v *Voucher) CheckFulfillmentEligibility() Eligibility {
	switch {
	case v.Suspended:
		return Eligibility{Reason: "voucher is suspended"}
	case v.LifecycleState == StateRedeemed:
		return Eligibility{Reason: "voucher is already redeemed"}
	case v.LifecycleState == StateCancelled:
		return Eligibility{Reason: "voucher is cancelled"}
	case v.LifecycleState != StateLocked:
		return Eligibility{Reason: "voucher must be locked for fulfillment"}
	}
	return Eligibility{Fulfillable: true}
}

// EnsureTransferable checks the preconditions for starting a gift transfer
func (v *Voucher) EnsureTransferable(toOwnerID string) error {
	if toOwnerID == "" {
		return shared.NewInvalidArgument("recipient reference is required")
	}
	if toOwnerID == v.OwnerID {
		return shared.NewInvalidArgument("cannot transfer voucher %s to its current owner", v.ID)
	}
	if v.Suspended {
		return shared.NewInvalidTransition("cannot transfer voucher %s while suspended", v.ID)
	}
	if v.LifecycleState != StateIssued {
		return shared.NewInvalidTransition("voucher %s must be issued to be transferred, current state is %s", v.ID, v.LifecycleState)
	}
	if !v.Giftable {
		return shared.NewInvalidTransition("voucher %s is not giftable", v.ID)
	}
	return nil
}

// AcceptTransfer reassigns ownership at the end of the transfer handshake
func (v *Voucher) AcceptTransfer(toOwnerID string, now time.Time) error {
	if v.IsTerminal() {
		return shared.NewInvalidTransition("cannot transfer voucher %s in terminal state %s", v.ID, v.LifecycleState)
	}
	if v.LifecycleState == StateLocked {
		return shared.NewInvalidTransition("cannot transfer voucher %s while locked for fulfillment", v.ID)
	}
	if v.Suspended {
		return shared.NewInvalidTransition("cannot transfer voucher %s while suspended", v.ID)
	}
	previousOwner := v.OwnerID
	v.OwnerID = toOwnerID
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherOwnershipChangedEvent(v, previousOwner, "transfer", now))
	return nil
}

// JoinCase stamps the case back-reference. Membership is fixed at case creation.
func (v *Voucher) JoinCase(caseID uuid.UUID, ownerID string, now time.Time) error {
	if v.OwnerID != ownerID {
		return shared.NewInvalidArgument("voucher %s does not belong to owner %s", v.ID, ownerID)
	}
	if v.CaseEntitlementID != nil {
		return shared.NewAlreadyInState("voucher %s is already a member of case %s", v.ID, *v.CaseEntitlementID)
	}
	if v.IsTerminal() {
		return shared.NewInvalidTransition("voucher %s in terminal state %s cannot join a case", v.ID, v.LifecycleState)
	}
	v.CaseEntitlementID = &caseID
	v.Touch(now)
	v.IncrementVersion()
	return nil
}

// Quarantine flags the voucher as requiring manual attention
func (v *Voucher) Quarantine(reason string, now time.Time) error {
	if reason == "" {
		return shared.NewInvalidArgument("quarantine reason is required")
	}
	if v.RequiresAttention {
		return shared.NewAlreadyInState("voucher %s is already quarantined", v.ID)
	}
	v.RequiresAttention = true
	v.AttentionReason = &reason
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherQuarantineChangedEvent(v, now))
	return nil
}

// ClearQuarantine lifts the attention flag. The caller re-validates first.
func (v *Voucher) ClearQuarantine(now time.Time) error {
	if !v.RequiresAttention {
		return shared.NewInvalidTransition("voucher %s is not quarantined", v.ID)
	}
	v.RequiresAttention = false
	v.AttentionReason = nil
	v.Touch(now)
	v.IncrementVersion()
	v.AddDomainEvent(NewVoucherQuarantineChangedEvent(v, now))
	return nil
}

// Snapshot returns the audit view of the voucher
func (v *Voucher) Snapshot() map[string]any {
	s := map[string]any{
		"allocation_id":      v.AllocationID.String(),
		"owner_id":           v.OwnerID,
		"lifecycle_state":    string(v.LifecycleState),
		"tradable":           v.Tradable,
		"giftable":           v.Giftable,
		"suspended":          v.Suspended,
		"requires_attention": v.RequiresAttention,
	}
	if v.ExternalTradingReference != nil {
		s["external_trading_reference"] = *v.ExternalTradingReference
	}
	if v.CaseEntitlementID != nil {
		s["case_entitlement_id"] = v.CaseEntitlementID.String()
	}
	if v.AttentionReason != nil {
		s["attention_reason"] = *v.AttentionReason
	}
	return s
}
