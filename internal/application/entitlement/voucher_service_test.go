package entitlement_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherService_IssueConsumesLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	allocationID := h.activeAllocation(t, 5)

	vs := h.issue(t, allocationID, testOwner, 3)
	for _, v := range vs {
		assert.Equal(t, allocationID, v.AllocationID)
		assert.Equal(t, 1, v.Quantity)
		assert.Equal(t, voucher.StateIssued, v.LifecycleState)
		assert.True(t, v.Tradable)
		assert.True(t, v.Giftable)
	}

	snap, err := h.allocations.Get(ctx, allocationID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RemainingQuantity)
	assert.Equal(t, 3, h.store.Events.CountOf(voucher.EventTypeVoucherIssued))

	t.Run("oversized issue creates nothing", func(t *testing.T) {
		_, err := h.vouchers.Issue(ctx, entitlement.IssueInput{
			AllocationID: allocationID, OwnerID: testOwner, SkuRef: testSku, Count: 3,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientAvailability)

		page, err := h.vouchers.ListByAllocation(ctx, allocationID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
	})

	t.Run("incomplete data is rejected before consuming", func(t *testing.T) {
		_, err := h.vouchers.Import(ctx, entitlement.ImportInput{AllocationID: allocationID, OwnerID: testOwner})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Contains(t, err.Error(), voucher.AnomalyMissingProduct)

		remaining, err := h.allocations.RemainingAvailable(ctx, allocationID)
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
	})

	t.Run("import issues a single voucher", func(t *testing.T) {
		v, err := h.vouchers.Import(ctx, entitlement.ImportInput{
			AllocationID: allocationID, OwnerID: "collector-ben", SkuRef: testSku, SaleRef: "legacy-42",
		})
		require.NoError(t, err)
		assert.Equal(t, "legacy-42", v.SaleRef)

		page, err := h.vouchers.ListByOwner(ctx, "collector-ben", shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, v.ID, page.Items[0].ID)
	})

	t.Run("count must be positive", func(t *testing.T) {
		_, err := h.vouchers.Issue(ctx, entitlement.IssueInput{
			AllocationID: allocationID, OwnerID: testOwner, SkuRef: testSku,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestVoucherService_IssueLargeBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const count = 4000
	allocationID := h.activeAllocation(t, count)

	vs := h.issue(t, allocationID, testOwner, count)
	assert.Len(t, vs, count)

	snap, err := h.allocations.Get(ctx, allocationID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RemainingQuantity)
	assert.Equal(t, allocation.StatusExhausted, snap.Status)

	page, err := h.vouchers.ListByAllocation(ctx, allocationID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.EqualValues(t, count, page.Total)
}

func TestVoucherService_LineageIsImmutable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	poolA := h.activeAllocation(t, 2)
	poolB := h.activeAllocation(t, 2)
	v := h.issue(t, poolA, testOwner, 1)[0]

	assert.ErrorIs(t, v.AssignAllocation(poolB), shared.ErrImmutableFieldWrite)

	loaded := h.reload(t, v.ID)
	loaded.AllocationID = poolB
	loaded.IncrementVersion()
	err := h.store.Repos.VoucherRepo().Save(ctx, loaded)
	assert.ErrorIs(t, err, shared.ErrImmutableFieldWrite)

	_, err = h.vouchers.SetTradable(ctx, v.ID, false)
	require.NoError(t, err)
	after := h.reload(t, v.ID)
	assert.Equal(t, poolA, after.AllocationID)
	assert.False(t, after.Tradable)

	require.NoError(t, h.vouchers.ValidateFulfillmentLineage(ctx, v.ID, poolA))
	assert.ErrorIs(t, h.vouchers.ValidateFulfillmentLineage(ctx, v.ID, poolB), shared.ErrLineageMismatch)
}

func TestVoucherService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	allocationID := h.activeAllocation(t, 10)
	vs := h.issue(t, allocationID, testOwner, 3)

	t.Run("lock, unlock, lock, redeem", func(t *testing.T) {
		id := vs[0].ID
		elig, err := h.vouchers.CheckFulfillmentEligibility(ctx, id)
		require.NoError(t, err)
		assert.False(t, elig.Fulfillable)

		_, err = h.vouchers.LockForFulfillment(ctx, id)
		require.NoError(t, err)
		_, err = h.vouchers.Unlock(ctx, id)
		require.NoError(t, err)
		_, err = h.vouchers.LockForFulfillment(ctx, id)
		require.NoError(t, err)

		elig, err = h.vouchers.CheckFulfillmentEligibility(ctx, id)
		require.NoError(t, err)
		assert.True(t, elig.Fulfillable)

		v, err := h.vouchers.Redeem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, voucher.StateRedeemed, v.LifecycleState)

		_, err = h.vouchers.Cancel(ctx, id)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		_, err = h.vouchers.Suspend(ctx, id, "audit")
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("redeem requires a lock", func(t *testing.T) {
		_, err := h.vouchers.Redeem(ctx, vs[1].ID)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("suspension blocks transitions until reactivated", func(t *testing.T) {
		id := vs[1].ID
		_, err := h.vouchers.Suspend(ctx, id, "payment review")
		require.NoError(t, err)
		_, err = h.vouchers.Suspend(ctx, id, "again")
		assert.ErrorIs(t, err, shared.ErrAlreadyInState)
		_, err = h.vouchers.LockForFulfillment(ctx, id)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		_, err = h.vouchers.SetGiftable(ctx, id, false)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		v, err := h.vouchers.Reactivate(ctx, id)
		require.NoError(t, err)
		assert.False(t, v.Suspended)
		assert.Nil(t, v.SuspensionReason)
	})

	t.Run("cancel does not refund the ledger", func(t *testing.T) {
		before, err := h.allocations.RemainingAvailable(ctx, allocationID)
		require.NoError(t, err)

		v, err := h.vouchers.Cancel(ctx, vs[2].ID)
		require.NoError(t, err)
		assert.Equal(t, voucher.StateCancelled, v.LifecycleState)

		after, err := h.allocations.RemainingAvailable(ctx, allocationID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	assert.Equal(t, []string{"issued", "locked", "unlocked", "locked", "redeemed"}, h.store.Audit.EventsFor(vs[0].ID))
}

func TestVoucherService_Trading(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	allocationID := h.activeAllocation(t, 10)
	vs := h.issue(t, allocationID, testOwner, 3)
	c, err := h.cases.Create(ctx, entitlement.CreateCaseInput{VoucherIDs: ids(vs), OwnerID: testOwner, SkuRef: testSku})
	require.NoError(t, err)

	t.Run("untradable vouchers cannot be listed", func(t *testing.T) {
		_, err := h.vouchers.SetTradable(ctx, vs[1].ID, false)
		require.NoError(t, err)
		_, err = h.vouchers.SuspendForTrading(ctx, vs[1].ID, "venue-1")
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		intact, err := h.cases.IsIntact(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, intact)
	})

	t.Run("pending transfer blocks trading", func(t *testing.T) {
		_, err := h.transfers.Initiate(ctx, entitlement.InitiateTransferInput{VoucherID: vs[2].ID, ToOwnerID: "friend"})
		require.NoError(t, err)
		_, err = h.vouchers.SuspendForTrading(ctx, vs[2].ID, "venue-1")
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("listing breaks the case and completion moves ownership", func(t *testing.T) {
		v, err := h.vouchers.SuspendForTrading(ctx, vs[0].ID, "venue-1")
		require.NoError(t, err)
		assert.True(t, v.Suspended)
		require.NotNil(t, v.ExternalTradingReference)

		broken, err := h.cases.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, caseentitlement.StatusBroken, broken.Status)
		require.NotNil(t, broken.BrokenReason)
		assert.Equal(t, caseentitlement.BrokenReasonTrade, *broken.BrokenReason)

		_, err = h.vouchers.CompleteTrading(ctx, vs[0].ID, "other-venue", "buyer")
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		v, err = h.vouchers.CompleteTrading(ctx, vs[0].ID, "venue-1", "buyer")
		require.NoError(t, err)
		assert.Equal(t, "buyer", v.OwnerID)
		assert.False(t, v.Suspended)
		assert.Nil(t, v.ExternalTradingReference)
		assert.Equal(t, allocationID, v.AllocationID)
	})
}

// The full issue, group and gift flow on a five unit pool.
func TestEntitlementFlow_FiveVoucherCase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	allocationID := h.activeAllocation(t, 5)

	vs := h.issue(t, allocationID, testOwner, 5)
	snap, err := h.allocations.Get(ctx, allocationID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RemainingQuantity)
	assert.Equal(t, allocation.StatusExhausted, snap.Status)

	c, err := h.cases.Create(ctx, entitlement.CreateCaseInput{VoucherIDs: ids(vs), OwnerID: testOwner, SkuRef: testSku})
	require.NoError(t, err)
	assert.Equal(t, caseentitlement.StatusIntact, c.Status)
	intact, err := h.cases.IsIntact(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, intact)

	third := vs[2]
	tr, err := h.transfers.Initiate(ctx, entitlement.InitiateTransferInput{VoucherID: third.ID, ToOwnerID: "friend-carla"})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, tr.Status)

	accepted, err := h.transfers.Accept(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusAccepted, accepted.Status)

	assert.Equal(t, "friend-carla", h.reload(t, third.ID).OwnerID)

	broken, err := h.cases.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, caseentitlement.StatusBroken, broken.Status)
	require.NotNil(t, broken.BrokenReason)
	assert.Equal(t, caseentitlement.BrokenReasonTransfer, *broken.BrokenReason)

	for _, v := range vs {
		if v.ID == third.ID {
			continue
		}
		got := h.reload(t, v.ID)
		assert.Equal(t, testOwner, got.OwnerID)
		require.NotNil(t, got.CaseEntitlementID)
		assert.Equal(t, c.ID, *got.CaseEntitlementID)
		assert.Equal(t, voucher.StateIssued, got.LifecycleState)
	}
	assert.Equal(t, 1, h.store.Events.CountOf(caseentitlement.EventTypeCaseBroken))
	assert.Equal(t, 1, h.store.Events.CountOf(voucher.EventTypeVoucherOwnershipChanged))
}

func TestVoucherService_GetUnknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.vouchers.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
