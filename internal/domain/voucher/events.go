package voucher

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// AggregateTypeVoucher is the aggregate type name
const AggregateTypeVoucher = "Voucher"

// Event type constants
const (
	EventTypeVoucherIssued            = "VoucherIssued"
	EventTypeVoucherLifecycleChanged  = "VoucherLifecycleChanged"
	EventTypeVoucherSuspensionChanged = "VoucherSuspensionChanged"
	EventTypeVoucherOwnershipChanged  = "VoucherOwnershipChanged"
	EventTypeVoucherQuarantineChanged = "VoucherQuarantineChanged"
)

// VoucherIssuedEvent is raised for every voucher created against an allocation
type VoucherIssuedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID `json:"allocation_id"`
	OwnerID      string    `json:"owner_id"`
	SkuRef       string    `json:"sku_ref"`
}

// NewVoucherIssuedEvent creates a new VoucherIssuedEvent
func NewVoucherIssuedEvent(v *Voucher, at time.Time) *VoucherIssuedEvent {
	return &VoucherIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVoucherIssued, AggregateTypeVoucher, v.ID, at),
		AllocationID:    v.AllocationID,
		OwnerID:         v.OwnerID,
		SkuRef:          v.SkuRef,
	}
}

// VoucherLifecycleChangedEvent is raised on lock, unlock, redeem and cancel
type VoucherLifecycleChangedEvent struct {
	shared.BaseDomainEvent
	FromState LifecycleState `json:"from_state"`
	ToState   LifecycleState `json:"to_state"`
}

// NewVoucherLifecycleChangedEvent creates a new VoucherLifecycleChangedEvent
func NewVoucherLifecycleChangedEvent(v *Voucher, from LifecycleState, at time.Time) *VoucherLifecycleChangedEvent {
	return &VoucherLifecycleChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVoucherLifecycleChanged, AggregateTypeVoucher, v.ID, at),
		FromState:       from,
		ToState:         v.LifecycleState,
	}
}

// VoucherSuspensionChangedEvent is raised when the suspension flag flips
type VoucherSuspensionChangedEvent struct {
	shared.BaseDomainEvent
	Suspended                bool    `json:"suspended"`
	Reason                   *string `json:"reason,omitempty"`
	ExternalTradingReference *string `json:"external_trading_reference,omitempty"`
}

// NewVoucherSuspensionChangedEvent creates a new VoucherSuspensionChangedEvent
func NewVoucherSuspensionChangedEvent(v *Voucher, at time.Time) *VoucherSuspensionChangedEvent {
	return &VoucherSuspensionChangedEvent{
		BaseDomainEvent:          shared.NewBaseDomainEvent(EventTypeVoucherSuspensionChanged, AggregateTypeVoucher, v.ID, at),
		Suspended:                v.Suspended,
		Reason:                   v.SuspensionReason,
		ExternalTradingReference: v.ExternalTradingReference,
	}
}

// VoucherOwnershipChangedEvent is raised when a transfer or trade completes
type VoucherOwnershipChangedEvent struct {
	shared.BaseDomainEvent
	FromOwnerID string `json:"from_owner_id"`
	ToOwnerID   string `json:"to_owner_id"`
	Channel     string `json:"channel"`
}

// NewVoucherOwnershipChangedEvent creates a new VoucherOwnershipChangedEvent
func NewVoucherOwnershipChangedEvent(v *Voucher, fromOwner, channel string, at time.Time) *VoucherOwnershipChangedEvent {
	return &VoucherOwnershipChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVoucherOwnershipChanged, AggregateTypeVoucher, v.ID, at),
		FromOwnerID:     fromOwner,
		ToOwnerID:       v.OwnerID,
		Channel:         channel,
	}
}

// VoucherQuarantineChangedEvent is raised when a voucher enters or leaves quarantine
type VoucherQuarantineChangedEvent struct {
	shared.BaseDomainEvent
	RequiresAttention bool    `json:"requires_attention"`
	Reason            *string `json:"reason,omitempty"`
}

// NewVoucherQuarantineChangedEvent creates a new VoucherQuarantineChangedEvent
func NewVoucherQuarantineChangedEvent(v *Voucher, at time.Time) *VoucherQuarantineChangedEvent {
	return &VoucherQuarantineChangedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeVoucherQuarantineChanged, AggregateTypeVoucher, v.ID, at),
		RequiresAttention: v.RequiresAttention,
		Reason:            v.AttentionReason,
	}
}
