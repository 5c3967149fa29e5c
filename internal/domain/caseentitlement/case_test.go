package caseentitlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNewCaseEntitlement(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	c, err := NewCaseEntitlement("cust-1", "SKU-OWC6", ids, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusIntact, c.Status)
	assert.Equal(t, ids, c.VoucherIDs)
	assert.Nil(t, c.BrokenAt)

	_, err = NewCaseEntitlement("cust-1", "SKU", nil, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewCaseEntitlement("cust-1", "SKU", []uuid.UUID{ids[0], ids[0]}, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewCaseEntitlement("", "SKU", ids, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestCaseEntitlement_BreakIsOneWay(t *testing.T) {
	c, err := NewCaseEntitlement("cust-1", "SKU", []uuid.UUID{uuid.New()}, testNow)
	require.NoError(t, err)

	require.NoError(t, c.Break(BrokenReasonTransfer, testNow))
	assert.True(t, c.IsBroken())
	require.NotNil(t, c.BrokenReason)
	assert.Equal(t, BrokenReasonTransfer, *c.BrokenReason)
	assert.Equal(t, testNow, *c.BrokenAt)

	err = c.Break(BrokenReasonTrade, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyBroken)
	assert.ErrorIs(t, err, shared.ErrAlreadyInState)
	assert.Equal(t, BrokenReasonTransfer, *c.BrokenReason)
	assert.Equal(t, testNow, *c.BrokenAt)
}

func TestCaseEntitlement_BreakRejectsUnknownReason(t *testing.T) {
	c, err := NewCaseEntitlement("cust-1", "SKU", []uuid.UUID{uuid.New()}, testNow)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Break("spilled", testNow), shared.ErrInvalidArgument)
	assert.False(t, c.IsBroken())
}

func TestCaseEntitlement_HoldsIntegrity(t *testing.T) {
	c, err := NewCaseEntitlement("cust-1", "SKU", []uuid.UUID{uuid.New(), uuid.New()}, testNow)
	require.NoError(t, err)

	assert.True(t, c.HoldsIntegrity([]Member{{OwnerID: "cust-1"}, {OwnerID: "cust-1"}}))
	assert.False(t, c.HoldsIntegrity([]Member{{OwnerID: "cust-1"}, {OwnerID: "cust-2"}}))
	assert.False(t, c.HoldsIntegrity([]Member{{OwnerID: "cust-1"}, {OwnerID: "cust-1", Redeemed: true}}))
	assert.False(t, c.HoldsIntegrity([]Member{{OwnerID: "cust-1"}}))
}
