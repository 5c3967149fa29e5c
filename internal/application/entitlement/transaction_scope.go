package entitlement

import (
	"context"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
)

// TransactionScope provides transactional access to the entitlement repositories.
// Everything done through the repositories handed to fn commits or rolls back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// The context passed to fn carries the transaction, so collaborators that
	// accept a context (the audit sink) take part in it. If fn returns an
	// error the transaction is rolled back.
	Execute(ctx context.Context, fn func(ctx context.Context, repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all entitlement repositories.
// Inside Execute they share one transaction; outside it they are plain readers.
//
// Lock ordering: allocation rows before voucher rows, voucher rows before case
// rows, and transfer rows before voucher rows. Sets of vouchers are locked in id order.
type TransactionalRepositories interface {
	// AllocationRepo returns the allocation ledger repository
	AllocationRepo() allocation.AllocationRepository
	// ReservationRepo returns the reservation repository
	ReservationRepo() allocation.ReservationRepository
	// VoucherRepo returns the voucher repository
	VoucherRepo() voucher.VoucherRepository
	// CaseRepo returns the case entitlement repository
	CaseRepo() caseentitlement.CaseRepository
	// TransferRepo returns the voucher transfer repository
	TransferRepo() transfer.TransferRepository
}
