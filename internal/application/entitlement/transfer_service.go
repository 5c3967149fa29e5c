package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/caseentitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/transfer"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/voucher"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Defaults for the transfer protocol
const (
	DefaultTransferTTL     = 72 * time.Hour
	DefaultExpiryBatchSize = 500
)

// TransferService runs the two-party gift transfer handshake.
// Every terminal transition is a compare-and-swap on the pending status, so
// an accept racing an expiry sweep has exactly one winner.
type TransferService struct {
	base
	cases     *CaseService
	ttl       time.Duration
	batchSize int
}

// NewTransferService creates a new TransferService
func NewTransferService(deps Dependencies, cases *CaseService) *TransferService {
	return &TransferService{
		base:      newBase(deps, "transfer"),
		cases:     cases,
		ttl:       DefaultTransferTTL,
		batchSize: DefaultExpiryBatchSize,
	}
}

// SetDefaultTTL sets the acceptance window used when Initiate gets no expiry
func (s *TransferService) SetDefaultTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// SetBatchSize sets how many due transfers one ExpireDue call handles
func (s *TransferService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// Initiate starts a transfer of the voucher to a new owner
func (s *TransferService) Initiate(ctx context.Context, input InitiateTransferInput) (*transfer.VoucherTransfer, error) {
	now := s.deps.Clock.Now()
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.ttl)
	}
	if !expiresAt.After(now) {
		return nil, shared.NewInvalidArgument("transfer expiry must be in the future")
	}

	var t *transfer.VoucherTransfer
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		v, err := repos.VoucherRepo().FindByIDForUpdate(ctx, input.VoucherID)
		if err != nil {
			return err
		}
		if err := v.EnsureTransferable(input.ToOwnerID); err != nil {
			return err
		}
		pending, err := hasPendingTransfer(ctx, repos, v.ID)
		if err != nil {
			return err
		}
		if pending {
			return shared.NewInvalidTransition("voucher %s already has a pending transfer", v.ID)
		}
		t, err = transfer.NewVoucherTransfer(v.ID, v.OwnerID, input.ToOwnerID, expiresAt, now)
		if err != nil {
			return err
		}
		if err := repos.TransferRepo().Create(ctx, t); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityTransfer, t.ID, "initiated", nil, t.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Voucher transfer initiated",
		zap.String("transfer_id", t.ID.String()),
		zap.String("voucher_id", t.VoucherID.String()),
		zap.Time("expires_at", t.ExpiresAt),
	)
	return t, nil
}

// Accept completes a pending transfer: the recipient becomes the owner and the
// voucher's case, if any, is broken.
func (s *TransferService) Accept(ctx context.Context, transferID uuid.UUID) (t *transfer.VoucherTransfer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "accept",
		telemetry.WithAttribute("transfer_id", transferID.String()),
	)
	defer func() { finishSpan(span, err) }()

	var (
		v      *voucher.Voucher
		broken *caseentitlement.CaseEntitlement
	)
	err = s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		t, err = repos.TransferRepo().FindByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		now := s.deps.Clock.Now()
		oldTransfer := t.Snapshot()
		if err := t.Accept(now); err != nil {
			return err
		}

		v, err = repos.VoucherRepo().FindByIDForUpdate(ctx, t.VoucherID)
		if err != nil {
			return err
		}
		if v.OwnerID != t.FromOwnerID {
			return shared.NewInvalidTransition("voucher %s changed owner since the transfer was initiated", v.ID)
		}
		oldVoucher := v.Snapshot()
		broken, err = s.cases.breakIfMemberTx(ctx, repos, v, caseentitlement.BrokenReasonTransfer)
		if err != nil {
			return err
		}
		if err := v.AcceptTransfer(t.ToOwnerID, now); err != nil {
			return err
		}
		if err := repos.VoucherRepo().Save(ctx, v); err != nil {
			return err
		}
		if err := s.resolve(ctx, repos, t); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityVoucher, v.ID, "ownership_transferred", oldVoucher, v.Snapshot())
		s.record(ctx, shared.AuditEntityTransfer, t.ID, "accepted", oldTransfer, t.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, v)
	if broken != nil {
		s.cases.publish(ctx, broken)
	}
	s.deps.Metrics.RecordTransferResolved(ctx, string(transfer.StatusAccepted))
	return t, nil
}

// Cancel withdraws a pending transfer. The voucher is not touched.
func (s *TransferService) Cancel(ctx context.Context, transferID uuid.UUID) (*transfer.VoucherTransfer, error) {
	return s.finish(ctx, transferID, "cancelled", func(t *transfer.VoucherTransfer, now time.Time) error {
		return t.Cancel(now)
	})
}

// Expire closes a single pending transfer
func (s *TransferService) Expire(ctx context.Context, transferID uuid.UUID) (*transfer.VoucherTransfer, error) {
	return s.finish(ctx, transferID, "expired", func(t *transfer.VoucherTransfer, now time.Time) error {
		return t.Expire(now)
	})
}

func (s *TransferService) finish(ctx context.Context, transferID uuid.UUID, event string, apply func(*transfer.VoucherTransfer, time.Time) error) (*transfer.VoucherTransfer, error) {
	var t *transfer.VoucherTransfer
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		var err error
		t, err = repos.TransferRepo().FindByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		old := t.Snapshot()
		if err := apply(t, s.deps.Clock.Now()); err != nil {
			return err
		}
		if err := s.resolve(ctx, repos, t); err != nil {
			return err
		}
		s.record(ctx, shared.AuditEntityTransfer, t.ID, event, old, t.Snapshot())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordTransferResolved(ctx, string(t.Status))
	return t, nil
}

// resolve writes t's terminal status only if the row is still pending
func (s *TransferService) resolve(ctx context.Context, repos TransactionalRepositories, t *transfer.VoucherTransfer) error {
	ok, err := repos.TransferRepo().ResolvePending(ctx, t)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewInvalidTransition("transfer %s is no longer pending", t.ID)
	}
	return nil
}

// ExpireDue expires every pending transfer whose window has closed, reading
// batchSize rows per page. Rows resolved by someone else in the meantime are
// counted as skipped. Safe to call at any frequency and from several instances.
func (s *TransferService) ExpireDue(ctx context.Context) (*ExpirationStats, error) {
	now := s.deps.Clock.Now()
	stats := &ExpirationStats{ProcessedAt: now}

	var cursor transfer.DueCursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		due, err := s.deps.Repos.TransferRepo().FindPendingDue(ctx, now, cursor, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to find due transfers", zap.Error(err))
			return nil, err
		}
		stats.TotalDue += len(due)
		s.expirePage(ctx, due, now, stats)

		if len(due) < s.batchSize {
			break
		}
		// Failed rows stay pending; the cursor moves past them regardless.
		cursor = transfer.CursorAfter(&due[len(due)-1])
	}

	if stats.TotalDue == 0 {
		s.logger.Debug("No due transfers found")
		return stats, nil
	}

	s.deps.Metrics.RecordSweep(ctx, telemetry.SweepTransfers, stats.Expired, stats.Skipped, stats.Failed)
	s.logger.Info("Completed transfer expiry sweep",
		zap.Int("total", stats.TotalDue),
		zap.Int("expired", stats.Expired),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *TransferService) expirePage(ctx context.Context, due []transfer.VoucherTransfer, now time.Time, stats *ExpirationStats) {
	for i := range due {
		t := &due[i]
		expired, err := s.expireOne(ctx, t, now)
		switch {
		case err != nil:
			s.logger.Error("Failed to expire transfer",
				zap.String("transfer_id", t.ID.String()),
				zap.String("voucher_id", t.VoucherID.String()),
				zap.Error(err),
			)
			stats.Failed++
		case expired:
			stats.Expired++
		default:
			stats.Skipped++
		}
	}
}

func (s *TransferService) expireOne(ctx context.Context, t *transfer.VoucherTransfer, now time.Time) (bool, error) {
	var expired bool
	err := s.deps.TxScope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		old := t.Snapshot()
		if err := t.Expire(now); err != nil {
			return err
		}
		ok, err := repos.TransferRepo().ResolvePending(ctx, t)
		if err != nil || !ok {
			return err
		}
		expired = true
		s.record(ctx, shared.AuditEntityTransfer, t.ID, "expired", old, t.Snapshot())
		return nil
	})
	return expired, err
}

// Get returns a transfer
func (s *TransferService) Get(ctx context.Context, id uuid.UUID) (*transfer.VoucherTransfer, error) {
	return s.deps.Repos.TransferRepo().FindByID(ctx, id)
}

// FindPendingForVoucher returns the voucher's pending transfer, or a NotFound error
func (s *TransferService) FindPendingForVoucher(ctx context.Context, voucherID uuid.UUID) (*transfer.VoucherTransfer, error) {
	return s.deps.Repos.TransferRepo().FindPendingForVoucher(ctx, voucherID)
}
