package entitlement_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/tests/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testPool  = "pool-barolo-2019"
	testSku   = "sku-barolo-750"
	testOwner = "collector-anna"
)

type harness struct {
	store       *testutil.Store
	allocations *entitlement.AllocationService
	cases       *entitlement.CaseService
	transfers   *entitlement.TransferService
	guard       *entitlement.AnomalyGuard
	vouchers    *entitlement.VoucherService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testutil.NewSQLiteStore(t))
}

func newHarnessWith(t *testing.T, store *testutil.Store) *harness {
	t.Helper()
	deps := store.Dependencies()
	allocations := entitlement.NewAllocationService(deps)
	cases := entitlement.NewCaseService(deps)
	guard := entitlement.NewAnomalyGuard(deps)
	return &harness{
		store:       store,
		allocations: allocations,
		cases:       cases,
		transfers:   entitlement.NewTransferService(deps, cases),
		guard:       guard,
		vouchers:    entitlement.NewVoucherService(deps, allocations, cases, guard),
	}
}

// activeAllocation creates and activates an allocation of the given size
func (h *harness) activeAllocation(t *testing.T, total int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	a, err := h.allocations.Create(ctx, entitlement.CreateAllocationInput{PoolKey: testPool, TotalQuantity: total})
	require.NoError(t, err)
	_, err = h.allocations.Activate(ctx, a.ID)
	require.NoError(t, err)
	return a.ID
}

func (h *harness) issue(t *testing.T, allocationID uuid.UUID, owner string, count int) []*voucher.Voucher {
	t.Helper()
	vs, err := h.vouchers.Issue(context.Background(), entitlement.IssueInput{
		AllocationID: allocationID,
		OwnerID:      owner,
		SkuRef:       testSku,
		SaleRef:      "sale-1",
		Count:        count,
	})
	require.NoError(t, err)
	require.Len(t, vs, count)
	return vs
}

func ids(vs []*voucher.Voucher) []uuid.UUID {
	out := make([]uuid.UUID, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *voucher.Voucher {
	t.Helper()
	v, err := h.vouchers.Get(context.Background(), id)
	require.NoError(t, err)
	return v
}
