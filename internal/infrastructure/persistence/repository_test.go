package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedAllocation(t *testing.T, db *gorm.DB, total int) *allocation.Allocation {
	t.Helper()
	a, err := allocation.NewAllocation("pool-barolo-2019", total, testNow)
	require.NoError(t, err)
	require.NoError(t, NewGormAllocationRepository(db).Create(context.Background(), a))
	return a
}

func seedVouchers(t *testing.T, db *gorm.DB, allocationID uuid.UUID, owner string, n int) []*voucher.Voucher {
	t.Helper()
	vs := make([]*voucher.Voucher, n)
	for i := range vs {
		v, err := voucher.NewVoucher(allocationID, owner, "sku-barolo-750", "sale-1", testNow)
		require.NoError(t, err)
		vs[i] = v
	}
	require.NoError(t, NewGormVoucherRepository(db).CreateBatch(context.Background(), vs))
	return vs
}

func TestGormAllocationRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormAllocationRepository(db)
	a := seedAllocation(t, db, 10)

	t.Run("round trips an allocation", func(t *testing.T) {
		found, err := repo.FindByIDForUpdate(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "pool-barolo-2019", found.PoolKey)
		assert.Equal(t, 10, found.TotalQuantity)
		assert.Equal(t, allocation.StatusDraft, found.Status)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("saves quantity with a version check", func(t *testing.T) {
		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		require.NoError(t, found.Activate(testNow))
		require.NoError(t, repo.SaveWithLock(ctx, found))

		stale, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		stale.Version = 1
		require.NoError(t, stale.Consume(3, 0, testNow))
		err = repo.SaveWithLock(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("missing allocation is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds by pool key", func(t *testing.T) {
		list, err := repo.FindByPoolKey(ctx, "pool-barolo-2019")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestGormReservationRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormReservationRepository(db)
	a := seedAllocation(t, db, 10)

	short, err := allocation.NewReservation(a.ID, 2, testNow.Add(time.Minute), testNow)
	require.NoError(t, err)
	long, err := allocation.NewReservation(a.ID, 3, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, short))
	require.NoError(t, repo.Create(ctx, long))

	sum, err := repo.SumHolding(ctx, a.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)

	sum, err = repo.SumHolding(ctx, a.ID, testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, sum, "expired reservations stop holding")

	released, err := repo.ReleaseExpired(ctx, testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	ok, err := repo.Release(ctx, long.ID, testNow)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Release(ctx, long.ID, testNow)
	require.NoError(t, err)
	assert.False(t, ok, "second release is a no-op")

	holding, err := repo.FindHolding(ctx, a.ID, testNow)
	require.NoError(t, err)
	assert.Empty(t, holding)
}

func TestGormVoucherRepository_Lineage(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormVoucherRepository(db)
	a := seedAllocation(t, db, 10)
	v := seedVouchers(t, db, a.ID, "owner-1", 1)[0]

	loaded, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.SetTradable(false, testNow))
	loaded.AllocationID = uuid.New()

	err = repo.Save(ctx, loaded)
	require.ErrorIs(t, err, shared.ErrImmutableFieldWrite)
	assert.ErrorIs(t, err, voucher.ErrImmutableLineage)

	readBack, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, readBack.AllocationID)
	assert.True(t, readBack.Tradable, "rejected save writes nothing")
}

func TestGormVoucherRepository_Save(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormVoucherRepository(db)
	a := seedAllocation(t, db, 10)
	v := seedVouchers(t, db, a.ID, "owner-1", 1)[0]

	t.Run("persists mutable fields", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Suspend("compliance hold", testNow))
		require.NoError(t, repo.Save(ctx, loaded))

		readBack, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, readBack.Suspended)
		require.NotNil(t, readBack.SuspensionReason)
		assert.Equal(t, "compliance hold", *readBack.SuspensionReason)
		assert.Equal(t, 2, readBack.Version)
	})

	t.Run("stale version is a concurrency conflict", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		loaded.Version = 1
		require.NoError(t, loaded.Reactivate(testNow))
		err = repo.Save(ctx, loaded)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("missing voucher is not found", func(t *testing.T) {
		ghost, err := voucher.NewVoucher(a.ID, "owner-1", "sku", "", testNow)
		require.NoError(t, err)
		require.NoError(t, ghost.SetGiftable(false, testNow))
		assert.ErrorIs(t, repo.Save(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormVoucherRepository_Queries(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormVoucherRepository(db)
	a := seedAllocation(t, db, 10)
	mine := seedVouchers(t, db, a.ID, "owner-1", 3)
	seedVouchers(t, db, a.ID, "owner-2", 2)

	t.Run("locks a set in id order and skips unknown ids", func(t *testing.T) {
		ids := []uuid.UUID{mine[2].ID, mine[0].ID, uuid.New(), mine[1].ID}
		locked, err := repo.FindByIDsForUpdate(ctx, ids)
		require.NoError(t, err)
		require.Len(t, locked, 3)
		for i := 1; i < len(locked); i++ {
			assert.Less(t, locked[i-1].ID.String(), locked[i].ID.String())
		}
	})

	t.Run("lists by owner with total", func(t *testing.T) {
		page, total, err := repo.ListByOwner(ctx, "owner-1", shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, page, 2)
	})

	t.Run("lists by allocation", func(t *testing.T) {
		_, total, err := repo.ListByAllocation(ctx, a.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("scans live vouchers after a cursor", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, mine[0].ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Quarantine("missing_product_reference", testNow))
		require.NoError(t, repo.Save(ctx, loaded))

		first, err := repo.FindForScan(ctx, uuid.Nil, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		rest, err := repo.FindForScan(ctx, first[1].ID, 10)
		require.NoError(t, err)
		assert.Len(t, rest, 2, "quarantined voucher is skipped")
	})
}

func TestGormCaseRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	vouchers := NewGormVoucherRepository(db)
	cases := NewGormCaseRepository(db)
	a := seedAllocation(t, db, 10)
	members := seedVouchers(t, db, a.ID, "owner-1", 3)

	ids := []uuid.UUID{members[0].ID, members[1].ID, members[2].ID}
	c, err := caseentitlement.NewCaseEntitlement("owner-1", "sku-barolo-750", ids, testNow)
	require.NoError(t, err)
	require.NoError(t, cases.Create(ctx, c))
	for _, m := range members {
		require.NoError(t, m.JoinCase(c.ID, "owner-1", testNow))
		require.NoError(t, vouchers.Save(ctx, m))
	}

	found, err := cases.FindByIDForUpdate(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, found.VoucherIDs)
	assert.Equal(t, caseentitlement.StatusIntact, found.Status)

	require.NoError(t, found.Break(caseentitlement.BrokenReasonTransfer, testNow))
	require.NoError(t, cases.Save(ctx, found))

	broken, err := cases.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, broken.IsBroken())
	require.NotNil(t, broken.BrokenReason)
	assert.Equal(t, caseentitlement.BrokenReasonTransfer, *broken.BrokenReason)
}

func TestGormTransferRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormTransferRepository(db)
	a := seedAllocation(t, db, 10)
	v := seedVouchers(t, db, a.ID, "owner-1", 1)[0]

	tr, err := transfer.NewVoucherTransfer(v.ID, "owner-1", "owner-2", testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tr))

	t.Run("one pending transfer per voucher", func(t *testing.T) {
		dup, err := transfer.NewVoucherTransfer(v.ID, "owner-1", "owner-3", testNow.Add(time.Hour), testNow)
		require.NoError(t, err)
		assert.Error(t, repo.Create(ctx, dup))
	})

	t.Run("finds pending and due transfers", func(t *testing.T) {
		pending, err := repo.FindPendingForVoucher(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, tr.ID, pending.ID)

		due, err := repo.FindPendingDue(ctx, testNow, transfer.DueCursor{}, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
		due, err = repo.FindPendingDue(ctx, testNow.Add(time.Hour), transfer.DueCursor{}, 10)
		require.NoError(t, err)
		assert.Len(t, due, 1)
	})

	t.Run("resolve is compare and swap on pending", func(t *testing.T) {
		expired, err := repo.FindByID(ctx, tr.ID)
		require.NoError(t, err)
		require.NoError(t, expired.Expire(testNow.Add(time.Hour)))

		cancelled, err := repo.FindByIDForUpdate(ctx, tr.ID)
		require.NoError(t, err)
		require.NoError(t, cancelled.Cancel(testNow))

		won, err := repo.ResolvePending(ctx, expired)
		require.NoError(t, err)
		assert.True(t, won)
		won, err = repo.ResolvePending(ctx, cancelled)
		require.NoError(t, err)
		assert.False(t, won)

		stored, err := repo.FindByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusExpired, stored.Status)

		_, err = repo.FindPendingForVoucher(ctx, v.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTransferRepository_DuePagingMovesPastUnresolvedRows(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormTransferRepository(db)
	a := seedAllocation(t, db, 10)
	vs := seedVouchers(t, db, a.ID, "owner-1", 3)

	expiries := []time.Duration{2 * time.Minute, time.Minute, time.Minute}
	for i, v := range vs {
		tr, err := transfer.NewVoucherTransfer(v.ID, "owner-1", "owner-2", testNow.Add(expiries[i]), testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, tr))
	}
	at := testNow.Add(time.Hour)

	first, err := repo.FindPendingDue(ctx, at, transfer.DueCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, testNow.Add(time.Minute).Unix(), first[0].ExpiresAt.Unix())
	assert.Equal(t, testNow.Add(time.Minute).Unix(), first[1].ExpiresAt.Unix())
	assert.Less(t, first[0].ID.String(), first[1].ID.String())

	// nothing was resolved, yet the next page starts after the last row read
	second, err := repo.FindPendingDue(ctx, at, transfer.CursorAfter(&first[1]), 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, testNow.Add(2*time.Minute).Unix(), second[0].ExpiresAt.Unix())

	rest, err := repo.FindPendingDue(ctx, at, transfer.CursorAfter(&second[0]), 2)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
