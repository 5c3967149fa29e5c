package transfer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func createTestTransfer(t *testing.T) *VoucherTransfer {
	t.Helper()
	tr, err := NewVoucherTransfer(uuid.New(), "cust-1", "cust-2", testNow.Add(48*time.Hour), testNow)
	require.NoError(t, err)
	return tr
}

func TestNewVoucherTransfer(t *testing.T) {
	tr := createTestTransfer(t)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, testNow, tr.InitiatedAt)
	assert.True(t, tr.IsPending())

	_, err := NewVoucherTransfer(uuid.New(), "cust-1", "cust-1", testNow.Add(time.Hour), testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewVoucherTransfer(uuid.New(), "cust-1", "cust-2", testNow, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewVoucherTransfer(uuid.New(), "cust-1", "cust-2", testNow.Add(-time.Minute), testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestVoucherTransfer_Accept(t *testing.T) {
	t.Run("within window", func(t *testing.T) {
		tr := createTestTransfer(t)
		require.NoError(t, tr.Accept(testNow.Add(time.Hour)))
		assert.Equal(t, StatusAccepted, tr.Status)
		require.NotNil(t, tr.AcceptedAt)
	})

	t.Run("at expiry is too late", func(t *testing.T) {
		tr := createTestTransfer(t)
		err := tr.Accept(tr.ExpiresAt)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, StatusPending, tr.Status)
	})

	t.Run("terminal transfers cannot be accepted", func(t *testing.T) {
		tr := createTestTransfer(t)
		require.NoError(t, tr.Cancel(testNow))
		assert.ErrorIs(t, tr.Accept(testNow), shared.ErrInvalidTransition)
	})
}

func TestVoucherTransfer_CancelAndExpire(t *testing.T) {
	tr := createTestTransfer(t)
	require.NoError(t, tr.Expire(tr.ExpiresAt))
	assert.Equal(t, StatusExpired, tr.Status)
	require.NotNil(t, tr.ExpiredAt)

	assert.ErrorIs(t, tr.Expire(testNow), shared.ErrInvalidTransition)
	assert.ErrorIs(t, tr.Cancel(testNow), shared.ErrInvalidTransition)

	other := createTestTransfer(t)
	require.NoError(t, other.Cancel(testNow))
	assert.Equal(t, StatusCancelled, other.Status)
	assert.True(t, other.Status.IsTerminal())
}
