package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindSentinels(t *testing.T) {
	err := NewInsufficientAvailability("only %d left", 3)

	assert.ErrorIs(t, err, ErrInsufficientAvailability)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "only 3 left", err.Error())

	wrapped := fmt.Errorf("issue vouchers: %w", err)
	assert.ErrorIs(t, wrapped, ErrInsufficientAvailability)
}

func TestDomainError_IsMatchesSpecificCodes(t *testing.T) {
	lineage := NewDomainError(KindImmutableFieldWrite, "IMMUTABLE_LINEAGE", "allocation_id is immutable")
	other := NewDomainError(KindImmutableFieldWrite, "IMMUTABLE_OWNER", "owner is immutable")

	assert.ErrorIs(t, lineage, ErrImmutableFieldWrite, "kind sentinel still matches")
	assert.True(t, errors.Is(fmt.Errorf("save: %w", lineage), lineage))
	assert.False(t, errors.Is(other, lineage), "same kind, different code")
}

func TestFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
	assert.Equal(t, 0, DefaultFilter().Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
}

func TestBaseAggregateRoot_Events(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	root := NewBaseAggregateRoot(now)
	assert.Equal(t, 1, root.GetVersion())
	assert.Equal(t, now, root.CreatedAt)

	ev := NewBaseDomainEvent("AllocationCreated", "Allocation", root.ID, now)
	root.AddDomainEvent(&ev)
	root.IncrementVersion()
	assert.Len(t, root.GetDomainEvents(), 1)
	assert.Equal(t, 2, root.GetVersion())

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}
