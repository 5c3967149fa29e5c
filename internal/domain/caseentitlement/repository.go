package caseentitlement

import (
	"context"

	"github.com/google/uuid"
)

// CaseRepository defines the interface for case entitlement persistence.
// Loaded cases carry their member ids, read from the voucher back-references.
type CaseRepository interface {
	// FindByID finds a case by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*CaseEntitlement, error)

	// FindByIDForUpdate loads the case holding an exclusive row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CaseEntitlement, error)

	// Create inserts the case row. Member back-references are written by the voucher repository.
	Create(ctx context.Context, c *CaseEntitlement) error

	// Save persists status and broken fields with an optimistic version check
	Save(ctx context.Context, c *CaseEntitlement) error
}
