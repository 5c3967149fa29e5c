package persistence

import (
	"context"

	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx returns a context carrying the open transaction
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back; otherwise it is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos entitlement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx), NewRepositories(tx))
	})
}

// gormRepositories hands out repositories bound to one *gorm.DB,
// either a transaction or the base connection.
type gormRepositories struct {
	db *gorm.DB
}

// NewRepositories returns repositories bound to db. Bound to the base
// connection they serve as the non-transactional readers.
func NewRepositories(db *gorm.DB) entitlement.TransactionalRepositories {
	return &gormRepositories{db: db}
}

// AllocationRepo returns the allocation repository
func (r *gormRepositories) AllocationRepo() allocation.AllocationRepository {
	return NewGormAllocationRepository(r.db)
}

// ReservationRepo returns the reservation repository
func (r *gormRepositories) ReservationRepo() allocation.ReservationRepository {
	return NewGormReservationRepository(r.db)
}

// VoucherRepo returns the voucher repository
func (r *gormRepositories) VoucherRepo() voucher.VoucherRepository {
	return NewGormVoucherRepository(r.db)
}

// CaseRepo returns the case entitlement repository
func (r *gormRepositories) CaseRepo() caseentitlement.CaseRepository {
	return NewGormCaseRepository(r.db)
}

// TransferRepo returns the voucher transfer repository
func (r *gormRepositories) TransferRepo() transfer.TransferRepository {
	return NewGormTransferRepository(r.db)
}

var (
	_ entitlement.TransactionScope          = (*GormTransactionScope)(nil)
	_ entitlement.TransactionalRepositories = (*gormRepositories)(nil)
)
