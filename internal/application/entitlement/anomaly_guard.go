package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultScanBatchSize is the page size used by Scan
const DefaultScanBatchSize = 200

// AnomalyGuard detects vouchers with broken lineage data and quarantines them
// for manual review.
type AnomalyGuard struct {
	base
	scanBatch int
}

// NewAnomalyGuard creates a new AnomalyGuard
func NewAnomalyGuard(deps Dependencies) *AnomalyGuard {
	return &AnomalyGuard{
		base:      newBase(deps, "anomaly"),
		scanBatch: DefaultScanBatchSize,
	}
}

// SetScanBatchSize sets the page size used by Scan
func (g *AnomalyGuard) SetScanBatchSize(n int) {
	if n > 0 {
		g.scanBatch = n
	}
}

// Validate checks that owner, allocation and product references are all present
func (g *AnomalyGuard) Validate(data voucher.VoucherData) voucher.ValidationResult {
	if err := validate.Struct(data); err != nil {
		return voucher.ValidationResult{Valid: false, Errors: fieldErrors(err)}
	}
	return voucher.ValidationResult{Valid: true}
}

func (g *AnomalyGuard) mutate(ctx context.Context, id uuid.UUID, event string, fn func(v *voucher.Voucher, now time.Time) (bool, error)) (*voucher.Voucher, bool, error) {
	var (
		v       *voucher.Voucher
		changed bool
	)
	err := g.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		v, err = repos.VoucherRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		old := v.Snapshot()
		changed, err = fn(v, g.deps.Clock.Now())
		if err != nil || !changed {
			return err
		}
		if err := repos.VoucherRepo().Save(ctx, v); err != nil {
			return err
		}
		g.record(ctx, shared.AuditEntityVoucher, v.ID, event, old, v.Snapshot())
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		g.publish(ctx, v)
	}
	return v, changed, nil
}

// Quarantine flags a voucher for manual attention
func (g *AnomalyGuard) Quarantine(ctx context.Context, voucherID uuid.UUID, reason string) (*voucher.Voucher, error) {
	v, _, err := g.mutate(ctx, voucherID, "quarantined", func(v *voucher.Voucher, now time.Time) (bool, error) {
		return true, v.Quarantine(reason, now)
	})
	if err != nil {
		return nil, err
	}
	g.deps.Metrics.RecordQuarantine(ctx, false)
	return v, nil
}

// Unquarantine lifts the attention flag. It refuses while the voucher still
// shows anomalies beyond the ones named in its quarantine reason.
func (g *AnomalyGuard) Unquarantine(ctx context.Context, voucherID uuid.UUID) (*voucher.Voucher, error) {
	v, _, err := g.mutate(ctx, voucherID, "unquarantined", func(v *voucher.Voucher, now time.Time) (bool, error) {
		if !v.RequiresAttention {
			return false, shared.NewInvalidTransition("voucher %s is not quarantined", v.ID)
		}
		if remaining := g.outstandingAnomalies(v); len(remaining) > 0 {
			return false, shared.NewInvalidTransition("voucher %s still has anomalies: %s", v.ID, voucher.QuarantineReason(remaining))
		}
		return true, v.ClearQuarantine(now)
	})
	return v, err
}

func (g *AnomalyGuard) outstandingAnomalies(v *voucher.Voucher) []string {
	result := g.Validate(voucher.DataOf(v))
	if result.Valid {
		return nil
	}
	cleared := make(map[string]struct{})
	if v.AttentionReason != nil {
		for _, code := range voucher.ReasonCodes(*v.AttentionReason) {
			cleared[code] = struct{}{}
		}
	}
	var remaining []string
	for _, code := range result.Errors {
		if _, ok := cleared[code]; !ok {
			remaining = append(remaining, code)
		}
	}
	return remaining
}

// AutoQuarantineIfNeeded quarantines the voucher if validation fails.
// Returns true only when this call quarantined it.
func (g *AnomalyGuard) AutoQuarantineIfNeeded(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	_, changed, err := g.mutate(ctx, voucherID, "auto_quarantined", func(v *voucher.Voucher, now time.Time) (bool, error) {
		if v.RequiresAttention {
			return false, nil
		}
		result := g.Validate(voucher.DataOf(v))
		if result.Valid {
			return false, nil
		}
		return true, v.Quarantine(voucher.QuarantineReason(result.Errors), now)
	})
	if err != nil {
		return false, err
	}
	if changed {
		g.deps.Metrics.RecordQuarantine(ctx, true)
		g.logger.Warn("Voucher auto-quarantined",
			zap.String("voucher_id", voucherID.String()),
		)
	}
	return changed, nil
}

// Scan walks every live, unquarantined voucher and quarantines the invalid ones
func (g *AnomalyGuard) Scan(ctx context.Context) (*ScanStats, error) {
	stats := &ScanStats{ProcessedAt: g.deps.Clock.Now()}
	after := uuid.Nil

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := g.deps.Repos.VoucherRepo().FindForScan(ctx, after, g.scanBatch)
		if err != nil {
			g.logger.Error("Failed to load vouchers for anomaly scan", zap.Error(err))
			return nil, err
		}
		for i := range batch {
			v := &batch[i]
			stats.Scanned++
			if g.Validate(voucher.DataOf(v)).Valid {
				continue
			}
			quarantined, err := g.AutoQuarantineIfNeeded(ctx, v.ID)
			if err != nil {
				g.logger.Error("Failed to quarantine voucher",
					zap.String("voucher_id", v.ID.String()),
					zap.Error(err),
				)
				stats.Failed++
				continue
			}
			if quarantined {
				stats.Quarantined++
			}
		}
		if len(batch) < g.scanBatch {
			break
		}
		after = batch[len(batch)-1].ID
	}

	g.deps.Metrics.RecordSweep(ctx, telemetry.SweepAnomalies, stats.Quarantined, stats.Scanned-stats.Quarantined-stats.Failed, stats.Failed)
	g.logger.Info("Completed anomaly scan",
		zap.Int("scanned", stats.Scanned),
		zap.Int("quarantined", stats.Quarantined),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
