package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type testHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *testHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.types }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func issuedEvent(t *testing.T) shared.DomainEvent {
	t.Helper()
	v, err := voucher.NewVoucher(uuid.New(), "owner-1", "SKU-BAROLO-2019", "sale-1", testNow)
	require.NoError(t, err)
	return voucher.NewVoucherIssuedEvent(v, testNow)
}

func event(eventType string) shared.DomainEvent {
	evt := shared.NewBaseDomainEvent(eventType, allocation.AggregateTypeAllocation, uuid.New(), testNow)
	return &evt
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	issued := &testHandler{}
	consumed := &testHandler{types: []string{allocation.EventTypeAllocationConsumed}}
	all := &testHandler{}

	bus.Subscribe(issued, voucher.EventTypeVoucherIssued)
	bus.Subscribe(consumed)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		issuedEvent(t),
		event(allocation.EventTypeAllocationConsumed),
	))

	assert.Equal(t, 1, issued.count())
	assert.Equal(t, 1, consumed.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_HandlerFailures(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	failing := &testHandler{err: errors.New("downstream unavailable")}
	panicking := &testHandler{panics: true}
	healthy := &testHandler{}

	bus.Subscribe(failing, voucher.EventTypeVoucherIssued)
	bus.Subscribe(panicking, voucher.EventTypeVoucherIssued)
	bus.Subscribe(healthy, voucher.EventTypeVoucherIssued)

	err := bus.Publish(context.Background(), issuedEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downstream unavailable")
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{}
	bus.Subscribe(h, voucher.EventTypeVoucherIssued, allocation.EventTypeAllocationConsumed)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), issuedEvent(t)))
	assert.Equal(t, 0, h.count())
	assert.Empty(t, bus.registry.HandlersFor(allocation.EventTypeAllocationConsumed))
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Stop(context.Background()))
	assert.ErrorIs(t, bus.Publish(context.Background(), issuedEvent(t)), ErrBusStopped)

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), issuedEvent(t)))
	assert.Equal(t, 1, h.count())
}

func TestLogHandler(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewLogHandler(zap.New(core)))

	evt := issuedEvent(t)
	require.NoError(t, bus.Publish(context.Background(), evt))

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, voucher.EventTypeVoucherIssued, entry.Message)
	assert.Equal(t, evt.AggregateID().String(), entry.ContextMap()["aggregate_id"])
	assert.Equal(t, voucher.AggregateTypeVoucher, entry.ContextMap()["aggregate_type"])
}
