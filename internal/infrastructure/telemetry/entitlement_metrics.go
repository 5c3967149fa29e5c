package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Consumption outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Sweep names
const (
	SweepTransfers    = "transfer_expiry"
	SweepReservations = "reservation_release"
	SweepAnomalies    = "anomaly_scan"
)

// EntitlementMetrics records ledger, voucher, case and transfer activity.
// A nil *EntitlementMetrics is valid and records nothing.
type EntitlementMetrics struct {
	logger *zap.Logger

	consumedUnits     *Counter
	consumeRequests   *Counter
	vouchersIssued    *Counter
	voucherEvents     *Counter
	casesBroken       *Counter
	transfersResolved *Counter
	quarantines       *Counter
	sweepItems        *Counter
	sweepDuration     *Histogram
}

// NewEntitlementMetrics creates the entitlement instruments on the given meter
func NewEntitlementMetrics(meter metric.Meter, logger *zap.Logger) (*EntitlementMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &EntitlementMetrics{logger: logger}
	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&m.consumedUnits, "entitlement_allocation_consumed_units_total", "Units consumed from allocation ledgers", "{units}"},
		{&m.consumeRequests, "entitlement_allocation_consume_requests_total", "Consume requests by outcome", "{requests}"},
		{&m.vouchersIssued, "entitlement_vouchers_issued_total", "Vouchers issued", "{vouchers}"},
		{&m.voucherEvents, "entitlement_voucher_events_total", "Voucher lifecycle and flag changes", "{events}"},
		{&m.casesBroken, "entitlement_cases_broken_total", "Case entitlements broken", "{cases}"},
		{&m.transfersResolved, "entitlement_transfers_resolved_total", "Transfers that reached a terminal status", "{transfers}"},
		{&m.quarantines, "entitlement_vouchers_quarantined_total", "Vouchers placed in quarantine", "{vouchers}"},
		{&m.sweepItems, "entitlement_sweep_items_total", "Rows handled by background sweeps", "{rows}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "entitlement_sweep_duration_seconds",
		Description: "Duration of background sweeps",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConsumption records one consume request
func (m *EntitlementMetrics) RecordConsumption(ctx context.Context, quantity int, outcome string) {
	if m == nil {
		return
	}
	m.consumeRequests.Inc(ctx, AttrOutcome.String(outcome))
	if outcome == OutcomeSuccess {
		m.consumedUnits.Add(ctx, int64(quantity))
	}
}

// RecordVouchersIssued records a successful issuance
func (m *EntitlementMetrics) RecordVouchersIssued(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.vouchersIssued.Add(ctx, int64(count))
}

// RecordVoucherEvent records a voucher mutation by audit event name
func (m *EntitlementMetrics) RecordVoucherEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.voucherEvents.Inc(ctx, AttrVoucherEvent.String(event))
}

// RecordCaseBroken records a case break
func (m *EntitlementMetrics) RecordCaseBroken(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.casesBroken.Inc(ctx, AttrBrokenReason.String(reason))
}

// RecordTransferResolved records a transfer reaching a terminal status
func (m *EntitlementMetrics) RecordTransferResolved(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.transfersResolved.Inc(ctx, AttrTransferEnd.String(status))
}

// RecordQuarantine records a voucher entering quarantine
func (m *EntitlementMetrics) RecordQuarantine(ctx context.Context, auto bool) {
	if m == nil {
		return
	}
	m.quarantines.Inc(ctx, AttrAuto.String(strconv.FormatBool(auto)))
}

// RecordSweep records the row counts of one sweep run
func (m *EntitlementMetrics) RecordSweep(ctx context.Context, sweep string, processed, skipped, failed int) {
	if m == nil {
		return
	}
	m.sweepItems.Add(ctx, int64(processed), AttrSweep.String(sweep), AttrResult.String("processed"))
	m.sweepItems.Add(ctx, int64(skipped), AttrSweep.String(sweep), AttrResult.String("skipped"))
	m.sweepItems.Add(ctx, int64(failed), AttrSweep.String(sweep), AttrResult.String("failed"))
}

// RecordSweepDuration records how long a sweep took
func (m *EntitlementMetrics) RecordSweepDuration(ctx context.Context, sweep string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.RecordDuration(ctx, d, AttrSweep.String(sweep))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewEntitlementMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
