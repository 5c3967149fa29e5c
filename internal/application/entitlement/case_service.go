package entitlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"go.uber.org/zap"
)

// CaseService groups vouchers into case entitlements and breaks them
type CaseService struct {
	base
}

// NewCaseService creates a new CaseService
func NewCaseService(deps Dependencies) *CaseService {
	return &CaseService{base: newBase(deps, "case")}
}

// Create groups the given vouchers into an intact case.
// Every member is locked, checked and stamped in one transaction.
func (s *CaseService) Create(ctx context.Context, input CreateCaseInput) (*caseentitlement.CaseEntitlement, error) {
	now := s.deps.Clock.Now()
	c, err := caseentitlement.NewCaseEntitlement(input.OwnerID, input.SkuRef, input.VoucherIDs, now)
	if err != nil {
		return nil, err
	}

	err = s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		members, err := repos.VoucherRepo().FindByIDsForUpdate(ctx, c.VoucherIDs)
		if err != nil {
			return err
		}
		if missing := missingIDs(c.VoucherIDs, members); len(missing) > 0 {
			return shared.NewDomainError(shared.KindNotFound, "VOUCHER_NOT_FOUND", "vouchers not found: "+joinIDs(missing))
		}
		if err := repos.CaseRepo().Create(ctx, c); err != nil {
			return err
		}
		for i := range members {
			m := &members[i]
			old := m.Snapshot()
			if err := m.JoinCase(c.ID, c.OwnerID, now); err != nil {
				return err
			}
			if err := repos.VoucherRepo().Save(ctx, m); err != nil {
				return err
			}
			s.record(ctx, shared.AuditEntityVoucher, m.ID, "joined_case", old, m.Snapshot())
		}
		s.record(ctx, shared.AuditEntityCase, c.ID, "created", nil, c.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, c)
	s.logger.Info("Case entitlement created",
		zap.String("case_id", c.ID.String()),
		zap.String("owner_id", c.OwnerID),
		zap.Int("members", len(c.VoucherIDs)),
	)
	return c, nil
}

// Get returns a case with its member ids
func (s *CaseService) Get(ctx context.Context, id uuid.UUID) (*caseentitlement.CaseEntitlement, error) {
	return s.deps.Repos.CaseRepo().FindByID(ctx, id)
}

// Break marks an intact case as broken
func (s *CaseService) Break(ctx context.Context, caseID uuid.UUID, reason caseentitlement.BrokenReason) (*caseentitlement.CaseEntitlement, error) {
	if !reason.IsValid() {
		return nil, shared.NewInvalidArgument("invalid broken reason %q", reason)
	}
	var c *caseentitlement.CaseEntitlement
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		c, err = repos.CaseRepo().FindByIDForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		return s.breakTx(ctx, repos, c, reason)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, c)
	return c, nil
}

// IsIntact reports whether the case is intact and all members still satisfy
// the grouping: same owner as the case and none redeemed.
func (s *CaseService) IsIntact(ctx context.Context, caseID uuid.UUID) (bool, error) {
	c, err := s.deps.Repos.CaseRepo().FindByID(ctx, caseID)
	if err != nil {
		return false, err
	}
	if c.IsBroken() {
		return false, nil
	}
	members, err := s.deps.Repos.VoucherRepo().FindByCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	view := make([]caseentitlement.Member, len(members))
	for i, m := range members {
		view[i] = caseentitlement.Member{
			OwnerID:  m.OwnerID,
			Redeemed: m.LifecycleState == voucher.StateRedeemed,
		}
	}
	return c.HoldsIntegrity(view), nil
}

// BreakIfMember breaks the case the voucher belongs to.
// Returns nil when the voucher is ungrouped or its case is already broken.
func (s *CaseService) BreakIfMember(ctx context.Context, voucherID uuid.UUID, reason caseentitlement.BrokenReason) (*caseentitlement.CaseEntitlement, error) {
	if !reason.IsValid() {
		return nil, shared.NewInvalidArgument("invalid broken reason %q", reason)
	}
	var c *caseentitlement.CaseEntitlement
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		v, err := repos.VoucherRepo().FindByIDForUpdate(ctx, voucherID)
		if err != nil {
			return err
		}
		c, err = s.breakIfMemberTx(ctx, repos, v, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c != nil {
		s.publish(ctx, c)
	}
	return c, nil
}

// breakIfMemberTx runs inside the caller's transaction, after the voucher row is locked
func (s *CaseService) breakIfMemberTx(ctx context.Context, repos TransactionalRepositories, v *voucher.Voucher, reason caseentitlement.BrokenReason) (*caseentitlement.CaseEntitlement, error) {
	if v.CaseEntitlementID == nil {
		return nil, nil
	}
	c, err := repos.CaseRepo().FindByIDForUpdate(ctx, *v.CaseEntitlementID)
	if err != nil {
		return nil, err
	}
	if c.IsBroken() {
		return nil, nil
	}
	if err := s.breakTx(ctx, repos, c, reason); err != nil {
		return nil, err
	}
	s.logger.Info("Case entitlement broken",
		zap.String("case_id", c.ID.String()),
		zap.String("voucher_id", v.ID.String()),
		zap.String("reason", string(reason)),
	)
	return c, nil
}

func (s *CaseService) breakTx(ctx context.Context, repos TransactionalRepositories, c *caseentitlement.CaseEntitlement, reason caseentitlement.BrokenReason) error {
	old := c.Snapshot()
	if err := c.Break(reason, s.deps.Clock.Now()); err != nil {
		return err
	}
	if err := repos.CaseRepo().Save(ctx, c); err != nil {
		return err
	}
	s.record(ctx, shared.AuditEntityCase, c.ID, "broken", old, c.Snapshot())
	s.deps.Metrics.RecordCaseBroken(ctx, string(reason))
	return nil
}

func missingIDs(want []uuid.UUID, got []voucher.Voucher) []uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(got))
	for _, v := range got {
		found[v.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []uuid.UUID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id.String()
	}
	return out
}
