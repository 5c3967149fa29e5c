package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGormTransactionScope(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	scope := NewGormTransactionScope(db)
	readers := NewRepositories(db)

	t.Run("commits repository writes together", func(t *testing.T) {
		a, err := allocation.NewAllocation("pool-commit", 5, testNow)
		require.NoError(t, err)

		err = scope.Execute(ctx, func(ctx context.Context, repos entitlement.TransactionalRepositories) error {
			_, inTx := TxFromContext(ctx)
			assert.True(t, inTx)
			return repos.AllocationRepo().Create(ctx, a)
		})
		require.NoError(t, err)

		_, err = readers.AllocationRepo().FindByID(ctx, a.ID)
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		a, err := allocation.NewAllocation("pool-rollback", 5, testNow)
		require.NoError(t, err)
		boom := errors.New("boom")

		err = scope.Execute(ctx, func(ctx context.Context, repos entitlement.TransactionalRepositories) error {
			if err := repos.AllocationRepo().Create(ctx, a); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = readers.AllocationRepo().FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormAuditSink(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	scope := NewGormTransactionScope(db)
	sink := NewGormAuditSink(db, zaptest.NewLogger(t))

	a, err := allocation.NewAllocation("pool-audit", 5, testNow)
	require.NoError(t, err)

	t.Run("writes inside the caller transaction", func(t *testing.T) {
		err := scope.Execute(ctx, func(ctx context.Context, repos entitlement.TransactionalRepositories) error {
			if err := repos.AllocationRepo().Create(ctx, a); err != nil {
				return err
			}
			sink.Record(ctx, shared.AuditEntry{
				EntityType: shared.AuditEntityAllocation,
				EntityID:   a.ID,
				Event:      "created",
				NewValues:  a.Snapshot(),
				ActorID:    "ops-1",
				OccurredAt: testNow,
			})
			return nil
		})
		require.NoError(t, err)

		entries, err := sink.FindByEntity(ctx, shared.AuditEntityAllocation, a.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "created", entries[0].Event)
		assert.Equal(t, "ops-1", entries[0].ActorID)
		assert.Equal(t, "pool-audit", entries[0].NewValues["pool_key"])
		assert.Nil(t, entries[0].OldValues)
	})

	t.Run("rolled back with the caller transaction", func(t *testing.T) {
		err := scope.Execute(ctx, func(ctx context.Context, repos entitlement.TransactionalRepositories) error {
			sink.Record(ctx, shared.AuditEntry{EntityType: shared.AuditEntityAllocation, EntityID: a.ID, Event: "discarded", ActorID: "ops-1", OccurredAt: testNow})
			return errors.New("abort")
		})
		require.Error(t, err)

		entries, err := sink.FindByEntity(ctx, shared.AuditEntityAllocation, a.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("a failing insert does not abort the caller", func(t *testing.T) {
		require.NoError(t, db.Migrator().DropTable(&models.AuditRecordModel{}))
		t.Cleanup(func() { _ = db.AutoMigrate(&models.AuditRecordModel{}) })

		b, err := allocation.NewAllocation("pool-audit-broken", 5, testNow)
		require.NoError(t, err)

		err = scope.Execute(ctx, func(ctx context.Context, repos entitlement.TransactionalRepositories) error {
			sink.Record(ctx, shared.AuditEntry{EntityType: shared.AuditEntityAllocation, EntityID: b.ID, Event: "created", ActorID: "ops-1", OccurredAt: testNow})
			return repos.AllocationRepo().Create(ctx, b)
		})
		require.NoError(t, err)

		_, err = NewRepositories(db).AllocationRepo().FindByID(ctx, b.ID)
		assert.NoError(t, err)
	})
}
