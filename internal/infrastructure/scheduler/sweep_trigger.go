// Package scheduler drives the periodic entitlement sweeps: transfer expiry,
// reservation release and the anomaly scan.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/config"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/logger"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TransferExpirer expires pending transfers past their deadline
type TransferExpirer interface {
	ExpireDue(ctx context.Context) (*entitlement.ExpirationStats, error)
}

// ReservationReleaser releases holding reservations past their deadline
type ReservationReleaser interface {
	ReleaseExpiredReservations(ctx context.Context) (*entitlement.ReservationReleaseStats, error)
}

// AnomalyScanner quarantines vouchers with broken lineage
type AnomalyScanner interface {
	Scan(ctx context.Context) (*entitlement.ScanStats, error)
}

// SweepTriggerConfig holds intervals per sweep. A zero interval disables that sweep.
type SweepTriggerConfig struct {
	Enabled                  bool
	TransferExpiryInterval   time.Duration
	ReservationSweepInterval time.Duration
	AnomalyScanInterval      time.Duration
	// SweepTimeout bounds a single run
	SweepTimeout time.Duration
}

// FromAppConfig builds the trigger config from the loaded application config
func FromAppConfig(c config.SchedulerConfig) SweepTriggerConfig {
	return SweepTriggerConfig{
		Enabled:                  c.Enabled,
		TransferExpiryInterval:   c.TransferExpiryInterval,
		ReservationSweepInterval: c.ReservationSweepInterval,
		AnomalyScanInterval:      c.AnomalyScanInterval,
		SweepTimeout:             c.SweepTimeout,
	}
}

type sweep struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) ([]zap.Field, error)
}

// SweepTrigger runs each sweep on its own ticker. Before a run it claims the
// current interval window in the run-guard; an instance that loses the claim skips the window.
type SweepTrigger struct {
	config  SweepTriggerConfig
	sweeps  map[string]sweep
	guard   shared.IdempotencyStore
	metrics *telemetry.EntitlementMetrics
	clock   shared.Clock
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweepTrigger registers the sweeps whose interval is positive
func NewSweepTrigger(
	cfg SweepTriggerConfig,
	transfers TransferExpirer,
	reservations ReservationReleaser,
	scanner AnomalyScanner,
	guard shared.IdempotencyStore,
	metrics *telemetry.EntitlementMetrics,
	log *zap.Logger,
) *SweepTrigger {
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 5 * time.Minute
	}
	t := &SweepTrigger{
		config:  cfg,
		sweeps:  make(map[string]sweep),
		guard:   guard,
		metrics: metrics,
		clock:   shared.NewSystemClock(),
		logger:  log.Named("sweep_trigger"),
	}

	if transfers != nil {
		t.register(telemetry.SweepTransfers, cfg.TransferExpiryInterval, func(ctx context.Context) ([]zap.Field, error) {
			stats, err := transfers.ExpireDue(ctx)
			if err != nil {
				return nil, err
			}
			return []zap.Field{
				zap.Int("total_due", stats.TotalDue),
				zap.Int("expired", stats.Expired),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed),
			}, nil
		})
	}
	if reservations != nil {
		t.register(telemetry.SweepReservations, cfg.ReservationSweepInterval, func(ctx context.Context) ([]zap.Field, error) {
			stats, err := reservations.ReleaseExpiredReservations(ctx)
			if err != nil {
				return nil, err
			}
			return []zap.Field{zap.Int("released", stats.Released)}, nil
		})
	}
	if scanner != nil {
		t.register(telemetry.SweepAnomalies, cfg.AnomalyScanInterval, func(ctx context.Context) ([]zap.Field, error) {
			stats, err := scanner.Scan(ctx)
			if err != nil {
				return nil, err
			}
			return []zap.Field{
				zap.Int("scanned", stats.Scanned),
				zap.Int("quarantined", stats.Quarantined),
				zap.Int("failed", stats.Failed),
			}, nil
		})
	}
	return t
}

// SetClock replaces the clock used to compute run-guard windows
func (t *SweepTrigger) SetClock(clock shared.Clock) {
	if clock != nil {
		t.clock = clock
	}
}

func (t *SweepTrigger) register(name string, interval time.Duration, run func(ctx context.Context) ([]zap.Field, error)) {
	if interval <= 0 {
		return
	}
	t.sweeps[name] = sweep{name: name, interval: interval, run: run}
}

// Sweeps returns the registered sweep names
func (t *SweepTrigger) Sweeps() []string {
	names := make([]string, 0, len(t.sweeps))
	for name := range t.sweeps {
		names = append(names, name)
	}
	return names
}

// Start launches one loop per registered sweep. It is a no-op when disabled or already running.
func (t *SweepTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return nil
	}
	if !t.config.Enabled {
		t.logger.Info("Sweep trigger is disabled")
		return nil
	}
	if len(t.sweeps) == 0 {
		return fmt.Errorf("%w: no sweep has a positive interval", ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.isRunning = true

	for _, s := range t.sweeps {
		t.wg.Add(1)
		go t.loop(ctx, s)
		t.logger.Info("Sweep scheduled",
			zap.String("sweep", s.name),
			zap.Duration("interval", s.interval),
		)
	}
	return nil
}

// Stop cancels the loops and waits for in-flight runs, bounded by ctx
func (t *SweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sweep trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Sweep trigger stop timed out")
		return ctx.Err()
	}
}

func (t *SweepTrigger) loop(ctx context.Context, s sweep) {
	defer t.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.execute(ctx, s); err != nil {
				t.logger.Error("Sweep failed", zap.String("sweep", s.name), zap.Error(err))
			}
		}
	}
}

// RunOnce runs the named sweep now, subject to the run-guard.
// It reports whether this instance ran it.
func (t *SweepTrigger) RunOnce(ctx context.Context, name string) (bool, error) {
	s, ok := t.sweeps[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSweep, name)
	}
	return t.execute(ctx, s)
}

func (t *SweepTrigger) execute(ctx context.Context, s sweep) (bool, error) {
	window := t.clock.Now().Truncate(s.interval)
	key := s.name + ":" + strconv.FormatInt(window.Unix(), 10)

	if t.guard != nil {
		claimed, err := t.guard.MarkProcessed(ctx, key, s.interval)
		if err != nil {
			return false, fmt.Errorf("claim sweep window: %w", err)
		}
		if !claimed {
			t.logger.Debug("Sweep window already claimed", zap.String("sweep", s.name), zap.String("key", key))
			return false, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, t.config.SweepTimeout)
	defer cancel()
	runCtx = logger.WithOperationID(logger.WithContext(runCtx, t.logger), s.name+"-"+uuid.NewString()[:8])

	started := time.Now()
	fields, err := s.run(runCtx)
	elapsed := time.Since(started)
	t.metrics.RecordSweepDuration(runCtx, s.name, elapsed)

	if err != nil {
		return true, fmt.Errorf("%s: %w", s.name, err)
	}
	logger.FromContext(runCtx).Info("Sweep completed",
		append(fields, zap.String("sweep", s.name), zap.Duration("elapsed", elapsed))...,
	)
	return true, nil
}
