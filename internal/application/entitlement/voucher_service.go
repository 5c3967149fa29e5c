package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// VoucherService drives the voucher lifecycle, suspension and trading flows
type VoucherService struct {
	base
	allocations *AllocationService
	cases       *CaseService
	guard       *AnomalyGuard
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(deps Dependencies, allocations *AllocationService, cases *CaseService, guard *AnomalyGuard) *VoucherService {
	return &VoucherService{
		base:        newBase(deps, "voucher"),
		allocations: allocations,
		cases:       cases,
		guard:       guard,
	}
}

// Issue consumes count units from the allocation and creates count vouchers,
// all in one transaction. Either every voucher exists and the ledger moved by
// count, or nothing changed.
func (s *VoucherService) Issue(ctx context.Context, input IssueInput) (vouchers []*voucher.Voucher, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "voucher", "issue",
		telemetry.WithAttribute("allocation_id", input.AllocationID.String()),
		telemetry.WithAttribute("count", input.Count),
	)
	defer func() { finishSpan(span, err) }()

	if input.Count <= 0 {
		return nil, shared.NewInvalidArgument("voucher count must be positive, got %d", input.Count)
	}
	result := s.guard.Validate(voucher.VoucherData{
		OwnerID:      input.OwnerID,
		AllocationID: input.AllocationID,
		SkuRef:       input.SkuRef,
	})
	if !result.Valid {
		return nil, shared.NewInvalidArgument("voucher data has anomalies: %s", voucher.QuarantineReason(result.Errors))
	}
	if err := s.allocations.precheck(ctx, input.AllocationID, input.Count); err != nil {
		return nil, err
	}

	var a *allocation.Allocation
	err = s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		a, err = s.allocations.consumeTx(ctx, repos, input.AllocationID, input.Count)
		if err != nil {
			return err
		}
		now := s.deps.Clock.Now()
		batch := make([]*voucher.Voucher, 0, input.Count)
		for i := 0; i < input.Count; i++ {
			v, err := voucher.NewVoucher(a.ID, input.OwnerID, input.SkuRef, input.SaleRef, now)
			if err != nil {
				return err
			}
			batch = append(batch, v)
		}
		if err := repos.VoucherRepo().CreateBatch(ctx, batch); err != nil {
			return err
		}
		for _, v := range batch {
			s.record(ctx, shared.AuditEntityVoucher, v.ID, "issued", nil, v.Snapshot())
		}
		vouchers = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.allocations.publish(ctx, a)
	for _, v := range vouchers {
		s.publish(ctx, v)
	}
	s.deps.Metrics.RecordVouchersIssued(ctx, len(vouchers))
	s.logger.Info("Vouchers issued",
		zap.String("allocation_id", input.AllocationID.String()),
		zap.String("owner_id", input.OwnerID),
		zap.Int("count", len(vouchers)),
	)
	return vouchers, nil
}

// Import brings a single externally sourced voucher into the core.
// Incomplete data is rejected before any quantity is consumed.
func (s *VoucherService) Import(ctx context.Context, input ImportInput) (*voucher.Voucher, error) {
	vouchers, err := s.Issue(ctx, IssueInput{
		AllocationID: input.AllocationID,
		OwnerID:      input.OwnerID,
		SkuRef:       input.SkuRef,
		SaleRef:      input.SaleRef,
		Count:        1,
	})
	if err != nil {
		return nil, err
	}
	return vouchers[0], nil
}

// Get returns a voucher
func (s *VoucherService) Get(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return s.deps.Repos.VoucherRepo().FindByID(ctx, id)
}

// ListByOwner returns a page of vouchers held by an owner
func (s *VoucherService) ListByOwner(ctx context.Context, ownerID string, filter shared.Filter) (*ListResult, error) {
	items, total, err := s.deps.Repos.VoucherRepo().ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total}, nil
}

// ListByAllocation returns a page of vouchers issued against an allocation
func (s *VoucherService) ListByAllocation(ctx context.Context, allocationID uuid.UUID, filter shared.Filter) (*ListResult, error) {
	items, total, err := s.deps.Repos.VoucherRepo().ListByAllocation(ctx, allocationID, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total}, nil
}

// mutate locks the voucher, applies fn and saves it, all in one transaction.
// fn may use repos for work that must commit together with the voucher.
func (s *VoucherService) mutate(ctx context.Context, id uuid.UUID, event string, fn func(ctx context.Context, repos TransactionalRepositories, v *voucher.Voucher, now time.Time) error) (*voucher.Voucher, error) {
	var v *voucher.Voucher
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		v, err = repos.VoucherRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		old := v.Snapshot()
		if err := fn(ctx, repos, v, s.deps.Clock.Now()); err != nil {
			return err
		}
		if err := repos.VoucherRepo().Save(ctx, v); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityVoucher, v.ID, event, old, v.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, v)
	s.deps.Metrics.RecordVoucherEvent(ctx, event)
	return v, nil
}

// LockForFulfillment moves an issued voucher to locked
func (s *VoucherService) LockForFulfillment(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "locked", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.LockForFulfillment(now)
	})
}

// Unlock moves a locked voucher back to issued
func (s *VoucherService) Unlock(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "unlocked", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.Unlock(now)
	})
}

// Redeem moves a locked voucher to redeemed and breaks its case, if any
func (s *VoucherService) Redeem(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	var broken *caseentitlement.CaseEntitlement
	v, err := s.mutate(ctx, id, "redeemed", func(ctx context.Context, repos TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		if err := v.Redeem(now); err != nil {
			return err
		}
		var err error
		broken, err = s.cases.breakIfMemberTx(ctx, repos, v, caseentitlement.BrokenReasonPartialRedemption)
		return err
	})
	if err != nil {
		return nil, err
	}
	if broken != nil {
		s.cases.publish(ctx, broken)
	}
	return v, nil
}

// Cancel moves an issued voucher to cancelled. The ledger is not refunded.
func (s *VoucherService) Cancel(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "cancelled", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.Cancel(now)
	})
}

// Suspend sets the suspension flag
func (s *VoucherService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "suspended", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.Suspend(reason, now)
	})
}

// Reactivate clears the suspension flag and any external trading reference
func (s *VoucherService) Reactivate(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "reactivated", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.Reactivate(now)
	})
}

// SuspendForTrading lists the voucher on an external venue. Its case, if any, is broken.
func (s *VoucherService) SuspendForTrading(ctx context.Context, id uuid.UUID, tradingRef string) (*voucher.Voucher, error) {
	var broken *caseentitlement.CaseEntitlement
	v, err := s.mutate(ctx, id, "suspended_for_trading", func(ctx context.Context, repos TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		pending, err := hasPendingTransfer(ctx, repos, v.ID)
		if err != nil {
			return err
		}
		if err := v.SuspendForTrading(tradingRef, pending, now); err != nil {
			return err
		}
		broken, err = s.cases.breakIfMemberTx(ctx, repos, v, caseentitlement.BrokenReasonTrade)
		return err
	})
	if err != nil {
		return nil, err
	}
	if broken != nil {
		s.cases.publish(ctx, broken)
	}
	return v, nil
}

// CompleteTrading assigns the voucher to the buyer and lifts the trading suspension
func (s *VoucherService) CompleteTrading(ctx context.Context, id uuid.UUID, tradingRef, newOwnerID string) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "trading_completed", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.CompleteTrading(tradingRef, newOwnerID, now)
	})
}

// SetTradable updates the tradable flag
func (s *VoucherService) SetTradable(ctx context.Context, id uuid.UUID, tradable bool) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "tradable_changed", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.SetTradable(tradable, now)
	})
}

// SetGiftable updates the giftable flag
func (s *VoucherService) SetGiftable(ctx context.Context, id uuid.UUID, giftable bool) (*voucher.Voucher, error) {
	return s.mutate(ctx, id, "giftable_changed", func(_ context.Context, _ TransactionalRepositories, v *voucher.Voucher, now time.Time) error {
		return v.SetGiftable(giftable, now)
	})
}

// ValidateFulfillmentLineage fails with a LineageMismatch error unless the
// candidate allocation is the one the voucher was issued from.
func (s *VoucherService) ValidateFulfillmentLineage(ctx context.Context, voucherID, candidateAllocationID uuid.UUID) error {
	v, err := s.deps.Repos.VoucherRepo().FindByID(ctx, voucherID)
	if err != nil {
		return err
	}
	return v.ValidateFulfillmentLineage(candidateAllocationID)
}

// CheckFulfillmentEligibility reports whether the voucher can be fulfilled now.
// Ineligibility is a result, not an error.
func (s *VoucherService) CheckFulfillmentEligibility(ctx context.Context, voucherID uuid.UUID) (voucher.Eligibility, error) {
	v, err := s.deps.Repos.VoucherRepo().FindByID(ctx, voucherID)
	if err != nil {
		return voucher.Eligibility{}, err
	}
	return v.CheckFulfillmentEligibility(), nil
}

func hasPendingTransfer(ctx context.Context, repos TransactionalRepositories, voucherID uuid.UUID) (bool, error) {
	_, err := repos.TransferRepo().FindPendingForVoucher(ctx, voucherID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	return false, err
}
